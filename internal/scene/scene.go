// Package scene defines the contract between the tool and the host scene graph.
//
// Everything the tool knows about objects, attributes, constraints, selection and
// undo goes through Gateway. The host application provides the implementation;
// package memory provides an in-process one.
package scene

import (
	"errors"
	"fmt"
)

// Attribute paths understood by every Gateway implementation.
const (
	AttrTranslateX = "translateX"
	AttrTranslateY = "translateY"
	AttrTranslateZ = "translateZ"
	AttrRotateX    = "rotateX"
	AttrRotateY    = "rotateY"
	AttrRotateZ    = "rotateZ"

	AttrVisibility = "visibility"

	AttrLocalScaleX = "localScaleX"
	AttrLocalScaleY = "localScaleY"
	AttrLocalScaleZ = "localScaleZ"

	AttrOverrideEnabled   = "overrideEnabled"
	AttrOverrideRGBColors = "overrideRGBColors"
	AttrOverrideColorRGB  = "overrideColorRGB"
)

// TransformAttrs lists the six channels copied by a snap, in write order.
var TransformAttrs = []string{
	AttrTranslateX, AttrTranslateY, AttrTranslateZ,
	AttrRotateX, AttrRotateY, AttrRotateZ,
}

// ScaleAttrs lists the locator display scale channels.
var ScaleAttrs = []string{AttrLocalScaleX, AttrLocalScaleY, AttrLocalScaleZ}

var (
	// ErrNotFound is returned when a named object, group or constraint does not exist.
	ErrNotFound = errors.New("scene object not found")

	// ErrExists is returned when creating an object whose name is already used.
	ErrExists = errors.New("scene object already exists")

	// ErrExternalStateRace marks an operation that expected scene state which
	// disappeared or changed underneath it. The next reconciliation retries.
	ErrExternalStateRace = errors.New("scene changed during operation")
)

// Outcome reports whether a mutating operation changed the scene.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	// OutcomeNothingToDo means a precondition was not met and nothing was touched.
	OutcomeNothingToDo
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNothingToDo:
		return "nothing_to_do"
	default:
		return "unknown"
	}
}

// SelectMode controls how Select combines names with the current selection.
type SelectMode int

const (
	SelectReplace SelectMode = iota
	SelectAdd
	SelectRemove
)

func (m SelectMode) String() string {
	switch m {
	case SelectReplace:
		return "replace"
	case SelectAdd:
		return "add"
	case SelectRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// ConstraintID identifies a constraint node in the scene.
type ConstraintID string

// UndoChunk is an open undo boundary. Close ends it; calling Close more than
// once is a no-op.
type UndoChunk interface {
	Close()
}

// Gateway is the capability set the tool consumes from the host scene graph.
type Gateway interface {
	ListChildren(group string) ([]string, error)
	Exists(name string) bool

	GetAttr(object, attr string) ([]float64, error)
	SetAttr(object, attr string, values ...float64) error

	CreateGroup(name string) error
	CreateLocator(name string) (string, error)
	Delete(names ...string) error
	Parent(child, parent string) error

	CreateParentConstraint(source, target string, maintainOffset bool) (ConstraintID, error)
	DeleteConstraint(id ConstraintID) error
	ListConstraints(object string) ([]ConstraintID, error)
	ConstraintSource(id ConstraintID) (string, error)

	Selection() ([]string, error)
	Select(mode SelectMode, names ...string) error

	OpenUndoChunk(label string) UndoChunk
	RestoreFocus() error
}

// ChangeKind describes a scene notification.
type ChangeKind int

const (
	SelectionChanged ChangeKind = iota
	StructureChanged
	AttributeChanged
)

func (k ChangeKind) String() string {
	switch k {
	case SelectionChanged:
		return "selection"
	case StructureChanged:
		return "structure"
	case AttributeChanged:
		return "attribute"
	default:
		return "unknown"
	}
}

// Change is delivered to scene subscribers.
type Change struct {
	Kind   ChangeKind
	Object string
}

// Notifier is implemented by gateways that push change notifications.
type Notifier interface {
	Subscribe(fn func(Change)) (unsubscribe func())
}

// InUndoChunk runs fn inside one undo chunk, closing it on every exit path.
func InUndoChunk(gw Gateway, label string, fn func() error) error {
	chunk := gw.OpenUndoChunk(label)
	defer chunk.Close()
	return fn()
}

// Race wraps err as an external state race unless it already is one.
func Race(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrExternalStateRace) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrExternalStateRace, err)
}
