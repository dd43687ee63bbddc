package engine

import "github.com/aicheye/crustty/internal/value"

// flowKind discriminates how a statement's execution wants its enclosing
// context to proceed. Modelled as a plain tagged result rather than a
// panic/exception, per the "no exceptions for control flow" design note —
// break/continue/return bubble up through ordinary Go return values.
type flowKind int

const (
	flowNormal flowKind = iota
	flowReturn
	flowBreak
	flowContinue
	flowGoto
)

// flow is the result every statement executor returns alongside an error:
// Normal means "fell through, keep going"; Return/Break/Continue unwind to
// the nearest function/loop-or-switch boundary that handles them; Goto
// unwinds to the nearest enclosing block search for a matching Label.
type flow struct {
	kind      flowKind
	returnVal *value.Value // set when kind == flowReturn and the function is non-void
	gotoLabel string       // set when kind == flowGoto
}

var flowFallthrough = flow{kind: flowNormal}

func flowReturning(v *value.Value) flow { return flow{kind: flowReturn, returnVal: v} }

var flowBreaking = flow{kind: flowBreak}
var flowContinuing = flow{kind: flowContinue}

func flowJumping(label string) flow { return flow{kind: flowGoto, gotoLabel: label} }
