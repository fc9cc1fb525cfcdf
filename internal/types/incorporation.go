package types

import (
	"log/slog"

	"github.com/orizon-lang/typecore/internal/code"
)

// ====== Bound Incorporation ======

// BoundConflict records two bounds of one inference variable that cannot
// both hold.
type BoundConflict struct {
	Var   *code.UndetVar
	Kind  code.InferenceBound
	Bound code.Type
	Other code.Type
}

// Incorporation listens to a set of inference variables and checks every
// new bound against the bounds already recorded: lower bounds must be
// subtypes of upper bounds and equal bounds must agree with both.
type Incorporation struct {
	types     *Types
	vars      []*code.UndetVar
	busy      bool
	Conflicts []BoundConflict
}

// NewIncorporation creates an empty inference context.
func (t *Types) NewIncorporation() *Incorporation {
	return &Incorporation{types: t}
}

// NewVar creates an inference variable for tv tracked by the context.
func (in *Incorporation) NewVar(tv *code.TypeVar) *code.UndetVar {
	uv := code.NewUndetVar(tv, in, in.types)
	in.vars = append(in.vars, uv)
	return uv
}

// Vars returns the tracked variables in creation order.
func (in *Incorporation) Vars() []*code.UndetVar {
	out := make([]*code.UndetVar, len(in.vars))
	copy(out, in.vars)
	return out
}

// AddBound records bound on uv.
func (t *Types) AddBound(uv *code.UndetVar, ib code.InferenceBound, bound code.Type) {
	uv.AddBound(ib, bound, t)
}

// VarBoundChanged checks the new bound against the existing ones.
func (in *Incorporation) VarBoundChanged(uv *code.UndetVar, ib code.InferenceBound, bound code.Type, update bool) {
	if in.busy || !in.proper(bound) {
		return
	}
	in.busy = true
	defer func() { in.busy = false }()

	t := in.types
	check := func(kind code.InferenceBound, holds func(other code.Type) bool) {
		for _, other := range uv.Bounds(kind) {
			if other == bound || !in.proper(other) {
				continue
			}
			if !holds(other) {
				in.Conflicts = append(in.Conflicts, BoundConflict{Var: uv, Kind: ib, Bound: bound, Other: other})
				t.log.Debug("inference bounds conflict",
					slog.String("var", uv.Origin.String()),
					slog.String("kind", ib.String()),
					slog.String("bound", bound.String()),
					slog.String("other", other.String()))
			}
		}
	}
	switch ib {
	case code.BoundLower:
		check(code.BoundUpper, func(o code.Type) bool { return t.IsSubtypeNoCapture(bound, o) })
		check(code.BoundEq, func(o code.Type) bool { return t.IsSubtypeNoCapture(bound, o) })
	case code.BoundUpper:
		check(code.BoundLower, func(o code.Type) bool { return t.IsSubtypeNoCapture(o, bound) })
		check(code.BoundEq, func(o code.Type) bool { return t.IsSubtypeNoCapture(o, bound) })
	case code.BoundEq:
		check(code.BoundEq, func(o code.Type) bool { return t.IsSameType(o, bound) })
		check(code.BoundLower, func(o code.Type) bool { return t.IsSubtypeNoCapture(o, bound) })
		check(code.BoundUpper, func(o code.Type) bool { return t.IsSubtypeNoCapture(bound, o) })
	}
}

// VarInstantiated propagates the instantiation of uv into the bounds of
// the other tracked variables that mention it.
func (in *Incorporation) VarInstantiated(uv *code.UndetVar) {
	if uv.Inst == nil {
		return
	}
	t := in.types
	from := []code.Type{uv.Origin}
	to := []code.Type{uv.Inst}
	for _, other := range in.vars {
		if other == uv || other.Inst != nil {
			continue
		}
		for _, ib := range []code.InferenceBound{code.BoundUpper, code.BoundEq, code.BoundLower} {
			for _, b := range other.Bounds(ib) {
				if code.Mentions(b, uv.Origin) {
					other.UpdateBound(ib, t.Subst(b, from, to), t)
				}
			}
		}
	}
}

// Instantiate sets the instantiation of uv and reports whether it
// satisfies every proper bound recorded so far.
func (in *Incorporation) Instantiate(uv *code.UndetVar, inst code.Type) bool {
	t := in.types
	ok := true
	for _, b := range uv.Bounds(code.BoundEq) {
		if in.proper(b) && !t.IsSameType(inst, b) {
			ok = false
		}
	}
	for _, b := range uv.Bounds(code.BoundLower) {
		if in.proper(b) && !t.IsSubtypeNoCapture(b, inst) {
			ok = false
		}
	}
	for _, b := range uv.Bounds(code.BoundUpper) {
		b = t.Subst(b, []code.Type{uv.Origin}, []code.Type{inst})
		if in.proper(b) && !t.IsSubtypeNoCapture(inst, b) {
			ok = false
		}
	}
	uv.SetInst(inst)
	return ok
}

// proper reports whether x mentions none of the tracked variables.
func (in *Incorporation) proper(x code.Type) bool {
	if x == nil {
		return true
	}
	for _, v := range in.vars {
		if code.Mentions(x, v.Origin) {
			return false
		}
	}
	return true
}
