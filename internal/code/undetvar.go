package code

// InferenceBound names one of the three bound sets of an inference variable.
type InferenceBound int

const (
	BoundLower InferenceBound = iota
	BoundEq
	BoundUpper
)

func (ib InferenceBound) String() string {
	switch ib {
	case BoundLower:
		return "lower"
	case BoundEq:
		return "eq"
	case BoundUpper:
		return "upper"
	default:
		return "unknown"
	}
}

// Complement swaps lower and upper; equality is its own complement.
func (ib InferenceBound) Complement() InferenceBound {
	switch ib {
	case BoundLower:
		return BoundUpper
	case BoundUpper:
		return BoundLower
	default:
		return BoundEq
	}
}

// UndetKind distinguishes ordinary inference variables from those standing
// in for a captured wildcard.
type UndetKind int

const (
	UndetNormal UndetKind = iota
	UndetCaptured
)

// SameTypeOracle decides bound redundancy.
type SameTypeOracle interface {
	IsSameType(t, s Type) bool
}

// UndetListener observes an inference variable.
type UndetListener interface {
	VarBoundChanged(uv *UndetVar, ib InferenceBound, bound Type, update bool)
	VarInstantiated(uv *UndetVar)
}

// UndetVar is an inference variable for Origin. Bounds are kept newest first.
type UndetVar struct {
	baseType
	Origin        *TypeVar
	Inst          Type
	Listener      UndetListener
	bounds        [3][]Type
	Kind          UndetKind
	DeclaredCount int
}

// NewUndetVar creates an inference variable seeded with the declared upper
// bounds of origin and, for captured variables, its lower bound.
func NewUndetVar(origin *TypeVar, listener UndetListener, oracle SameTypeOracle) *UndetVar {
	uv := &UndetVar{Origin: origin, Listener: listener}
	if origin.Captured != nil {
		uv.Kind = UndetCaptured
	}
	declared := declaredBounds(origin)
	uv.DeclaredCount = len(declared)
	for i := len(declared) - 1; i >= 0; i-- {
		uv.addBound(BoundUpper, declared[i], oracle, true)
	}
	if origin.Captured != nil && origin.Lower != nil && origin.Lower.Tag() != TagBot {
		uv.addBound(BoundLower, origin.Lower, oracle, true)
	}
	return uv
}

func declaredBounds(tv *TypeVar) []Type {
	switch u := tv.Upper.(type) {
	case nil:
		return nil
	case *IntersectionType:
		return u.Components
	default:
		return []Type{u}
	}
}

func (t *UndetVar) Tag() TypeTag    { return TagUndetVar }
func (t *UndetVar) TypeSym() Symbol { return t.Origin.TypeSym() }

func (t *UndetVar) CloneWithMetadata(md Metadata) Type {
	return t
}

func (t *UndetVar) String() string {
	if t.Inst != nil {
		return t.Inst.String()
	}
	return t.Origin.String() + "'"
}

// IsCaptured reports whether the variable stands in for a captured wildcard.
func (t *UndetVar) IsCaptured() bool {
	return t.Kind == UndetCaptured
}

// Bounds returns the bounds of the given kind, newest first.
func (t *UndetVar) Bounds(ib InferenceBound) []Type {
	out := make([]Type, len(t.bounds[ib]))
	copy(out, t.bounds[ib])
	return out
}

// AddBound records bound. Captured variables accept no external bounds;
// a regular inference variable offered as bound instead receives this
// variable as its complementary bound.
func (t *UndetVar) AddBound(ib InferenceBound, bound Type, oracle SameTypeOracle) {
	t.addBound(ib, bound, oracle, false)
}

// UpdateBound records bound even on captured variables. Incorporation uses
// it while instantiating another variable.
func (t *UndetVar) UpdateBound(ib InferenceBound, bound Type, oracle SameTypeOracle) {
	t.addBound(ib, bound, oracle, true)
}

func (t *UndetVar) addBound(ib InferenceBound, bound Type, oracle SameTypeOracle, update bool) {
	if t.Kind == UndetCaptured && !update {
		if other, ok := bound.(*UndetVar); ok && !other.IsCaptured() {
			other.addBound(ib.Complement(), t, oracle, false)
		}
		return
	}

	bound2 := ToTypeVars(bound)
	if EqualIgnoreMetadata(bound2, t.Origin) {
		return
	}
	for _, b := range t.bounds[ib] {
		if oracle != nil && oracle.IsSameType(b, bound2) || EqualIgnoreMetadata(b, bound2) {
			return
		}
	}
	t.bounds[ib] = append([]Type{bound2}, t.bounds[ib]...)
	t.notifyBoundChange(ib, bound2, update)
}

// SetBounds replaces a whole bound set.
func (t *UndetVar) SetBounds(ib InferenceBound, bounds []Type) {
	cp := make([]Type, len(bounds))
	copy(cp, bounds)
	t.bounds[ib] = cp
	for _, b := range cp {
		t.notifyBoundChange(ib, b, true)
	}
}

// SetInst records the instantiation and notifies the listener.
func (t *UndetVar) SetInst(inst Type) {
	t.Inst = inst
	if t.Listener != nil {
		t.Listener.VarInstantiated(t)
	}
}

func (t *UndetVar) notifyBoundChange(ib InferenceBound, bound Type, update bool) {
	if t.Listener != nil {
		t.Listener.VarBoundChanged(t, ib, bound, update)
	}
}

// ToTypeVars replaces every inference variable inside t by its
// instantiation, or by the type variable it was created for.
func ToTypeVars(t Type) Type {
	if uv, ok := t.(*UndetVar); ok {
		if uv.Inst != nil {
			return uv.Inst
		}
		return uv.Origin
	}
	return MapStructure(t, ToTypeVars)
}
