package model

import "fmt"

// ClassOfSupply is a coarse logistics category. Base classes are 1 through
// 10; sub-classes use three or four digit codes whose leading digits name the
// parent (401 is under 4, 4011 is under 401).
type ClassOfSupply int

const (
	COSNone ClassOfSupply = 0
	COS1    ClassOfSupply = 1  // propellants and fuels
	COS2    ClassOfSupply = 2  // crew provisions
	COS3    ClassOfSupply = 3  // crew operations
	COS4    ClassOfSupply = 4  // maintenance and upkeep
	COS5    ClassOfSupply = 5  // stowage and restraint
	COS6    ClassOfSupply = 6  // exploration and research
	COS7    ClassOfSupply = 7  // waste and disposal
	COS8    ClassOfSupply = 8  // habitation and infrastructure
	COS9    ClassOfSupply = 9  // transportation and carriers
	COS10   ClassOfSupply = 10 // miscellaneous

	COS201 ClassOfSupply = 201 // water and support equipment
	COS203 ClassOfSupply = 203 // gases
	COS401 ClassOfSupply = 401 // spares and repair parts
)

// Parent returns the next more general class, or COSNone for base classes.
func (c ClassOfSupply) Parent() ClassOfSupply {
	switch {
	case c >= 1000:
		return c / 10
	case c >= 100:
		return c / 100
	default:
		return COSNone
	}
}

// IsInstanceOf reports whether c equals other or is one of its sub-classes.
func (c ClassOfSupply) IsInstanceOf(other ClassOfSupply) bool {
	for cur := c; cur != COSNone; cur = cur.Parent() {
		if cur == other {
			return true
		}
	}
	return c == other
}

func (c ClassOfSupply) String() string { return fmt.Sprintf("COS%d", int(c)) }

// Environment is the storage environment a resource or element requires.
type Environment string

const (
	EnvUnpressurized Environment = "unpressurized"
	EnvPressurized   Environment = "pressurized"
)

// ResourceKind distinguishes continuous, discrete and class-only resources.
type ResourceKind int

const (
	ResourceContinuous ResourceKind = iota
	ResourceItem
	ResourceGeneric
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceItem:
		return "item"
	case ResourceGeneric:
		return "generic"
	default:
		return "continuous"
	}
}

// Resource identifies a type of supply. Concrete resources carry a positive
// ID. Generic resources are identified by class of supply and environment and
// carry ID = -ClassOfSupply.
//
// Resource is comparable and is used directly as a map key.
type Resource struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	Kind          ResourceKind  `json:"kind"`
	ClassOfSupply ClassOfSupply `json:"cos"`
	Environment   Environment   `json:"environment"`
	Units         string        `json:"units"`
	UnitMass      float64       `json:"unit_mass"`
	UnitVolume    float64       `json:"unit_volume"`
	PackingFactor float64       `json:"packing_factor"`
}

// GenericResource builds the class-of-supply placeholder resource used for
// unresolved demands. Generic resources have unit mass 1 so amounts are kg.
func GenericResource(cos ClassOfSupply, env Environment) Resource {
	if env == "" {
		env = EnvUnpressurized
	}
	packing := 0.6
	if env == EnvPressurized {
		packing = 1.2
	}
	switch {
	case cos.IsInstanceOf(COS6):
		packing = 0
	case cos.IsInstanceOf(COS203):
		packing = 1.0
	case cos.IsInstanceOf(COS201):
		packing = 0.5
	}
	return Resource{
		ID:            -int(cos),
		Name:          "Generic " + cos.String(),
		Kind:          ResourceGeneric,
		ClassOfSupply: cos,
		Environment:   env,
		Units:         "kg",
		UnitMass:      1,
		PackingFactor: packing,
	}
}

// IsGeneric reports whether r is a class-of-supply placeholder.
func (r Resource) IsGeneric() bool { return r.ID < 0 || r.Kind == ResourceGeneric }

// IsItem reports whether r is a discrete item.
func (r Resource) IsItem() bool { return r.Kind == ResourceItem }

// SubstitutesFor reports whether on-hand stock of r may satisfy a demand for
// target. Generic stock substitutes for any demand of an equal or more
// general class; concrete stock only for the same resource type.
func (r Resource) SubstitutesFor(target Resource) bool {
	if r.IsGeneric() {
		return r.ClassOfSupply.IsInstanceOf(target.ClassOfSupply)
	}
	return r.ID == target.ID
}

func (r Resource) String() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("resource-%d", r.ID)
}
