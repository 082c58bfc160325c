// Package engine is a tiny reverse-mode automatic differentiation engine
// over scalar values.
package engine

import "fmt"

// Op identifies the operation that produced a Value.
type Op uint8

const (
	OpLeaf Op = iota
	OpAdd
	OpMul
	OpReLU
)

func (o Op) String() string {
	switch o {
	case OpLeaf:
		return "leaf"
	case OpAdd:
		return "+"
	case OpMul:
		return "*"
	case OpReLU:
		return "relu"
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Value is the core unit of the engine.
//
// Think of this as a "number with memory":
// - Data is the actual number used in calculations.
// - Grad is "how much the final output changes if this number changes a little."
// - children points to the input nodes used to create this value.
// - localGrads stores the local derivative for each child, captured when
//   the node was built.
//
// Values are not safe for concurrent use. Build and differentiate one graph
// at a time.
type Value struct {
	Data float64
	Grad float64

	op         Op
	children   []*Value
	localGrads []float64
}

// NewValue creates a leaf node (a plain number with no parents).
func NewValue(data float64) *Value {
	return &Value{Data: data}
}

// Children returns the nodes v was computed from, in operand order.
// The slice is shared with v and must not be modified.
func (v *Value) Children() []*Value {
	return v.children
}

// Op reports which operation produced v.
func (v *Value) Op() Op {
	return v.op
}

// Add creates node z = x + y.
// Local derivatives:
// dz/dx = 1
// dz/dy = 1
func (v *Value) Add(other *Value) *Value {
	return &Value{
		Data:       v.Data + other.Data,
		op:         OpAdd,
		children:   []*Value{v, other},
		localGrads: []float64{1, 1},
	}
}

// Mul creates node z = x * y.
// Local derivatives:
// dz/dx = y
// dz/dy = x
//
// Both factors are read now, so a later update to x or y does not change
// the gradient this node hands back.
func (v *Value) Mul(other *Value) *Value {
	return &Value{
		Data:       v.Data * other.Data,
		op:         OpMul,
		children:   []*Value{v, other},
		localGrads: []float64{other.Data, v.Data},
	}
}

// Relu applies the ReLU activation:
// relu(x) = max(0, x)
//
// The receiver is clamped in place before the output is built, so after the
// call v.Data and the result's Data are equal and non-negative.
//
// Local derivative:
// 1 when x > 0, otherwise 0 (including at the kink).
func (v *Value) Relu() *Value {
	if v.Data < 0 {
		v.Data = 0
	}
	grad := 0.0
	if v.Data > 0 {
		grad = 1.0
	}
	return &Value{
		Data:       v.Data,
		op:         OpReLU,
		children:   []*Value{v},
		localGrads: []float64{grad},
	}
}

// ZeroGrad resets the gradient of this Value to 0.
func (v *Value) ZeroGrad() {
	v.Grad = 0
}

// ZeroGrads resets the gradient of every given value.
func ZeroGrads(vs ...*Value) {
	for _, v := range vs {
		v.Grad = 0
	}
}

func (v *Value) String() string {
	return fmt.Sprintf("Value(data=%g, grad=%g)", v.Data, v.Grad)
}

// propagate pushes v.Grad into each child using the captured local
// derivatives. Leaves have no children, so this is a no-op for them.
func (v *Value) propagate() {
	for i, child := range v.children {
		child.Grad += v.localGrads[i] * v.Grad
	}
}
