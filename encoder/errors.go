package encoder

import "github.com/msedwar/m20/parser"

// The encoder reports through the same parser.ErrorList/parser.Error
// diagnostic type used by the lexer and parser (spec §7's shared taxonomy)
// rather than a distinct wrapper type, so a batch run of the assembler can
// merge and dedup parse errors and code-generation errors into one ordered
// report. These helpers just pick the right ErrorKind for each failure mode.

func (e *Encoder) errDirective(pos parser.Position, msg string) {
	e.errs.AddError(parser.NewError(pos, parser.ErrorDirective, msg))
}

func (e *Encoder) errSection(pos parser.Position, msg string) {
	e.errs.AddError(parser.NewError(pos, parser.ErrorSection, msg))
}

func (e *Encoder) errLabel(pos parser.Position, msg string) {
	e.errs.AddError(parser.NewError(pos, parser.ErrorLabel, msg))
}

func (e *Encoder) errAlignment(pos parser.Position, msg string) {
	e.errs.AddError(parser.NewError(pos, parser.ErrorAlignment, msg))
}
