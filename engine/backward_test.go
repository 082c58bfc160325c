package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

func TestBackwardMul(t *testing.T) {
	a, b := NewValue(2), NewValue(-3)
	c := a.Mul(b)
	require.Equal(t, -6.0, c.Data)

	c.Backward()

	assert.Equal(t, 1.0, c.Grad)
	assert.Equal(t, -3.0, a.Grad)
	assert.Equal(t, 2.0, b.Grad)
}

func TestBackwardRelu(t *testing.T) {
	a := NewValue(-2)
	r := a.Relu()
	require.Equal(t, 0.0, r.Data)
	require.Equal(t, 0.0, a.Data)

	r.Backward()
	assert.Equal(t, 0.0, a.Grad)
}

func TestBackwardSharedOperand(t *testing.T) {
	x := NewValue(3)
	y := x.Add(x)
	require.Equal(t, 6.0, y.Data)
	require.Len(t, y.Children(), 2)

	y.Backward()
	assert.Equal(t, 2.0, x.Grad)

	sq := NewValue(3)
	z := sq.Mul(sq)
	z.Backward()
	assert.Equal(t, 6.0, sq.Grad)
}

func TestBackwardAccumulatesAcrossPaths(t *testing.T) {
	two, three := NewValue(2), NewValue(3)

	gradVia := func(build func(x *Value) *Value) float64 {
		x := NewValue(1.5)
		build(x).Backward()
		return x.Grad
	}
	viaA := gradVia(func(x *Value) *Value { return x.Mul(two) })
	viaB := gradVia(func(x *Value) *Value { return x.Mul(x).Mul(three) })

	x := NewValue(1.5)
	a := x.Mul(two)
	b := x.Mul(x).Mul(three)
	r := a.Add(b)
	r.Backward()

	assert.InDelta(t, viaA+viaB, x.Grad, 1e-12)
	assert.InDelta(t, 2+6*1.5, x.Grad, 1e-12)
}

func TestBackwardDoesNotResetGrads(t *testing.T) {
	a, b := NewValue(2), NewValue(4)
	c := a.Add(b)

	c.Backward()
	c.Backward()
	assert.Equal(t, 2.0, a.Grad, "second pass adds onto stale gradient")

	ZeroGrads(a, b)
	c.Backward()
	assert.Equal(t, 1.0, a.Grad)
}

func TestTopoOrder(t *testing.T) {
	a, b := NewValue(1), NewValue(2)
	c := a.Mul(b)
	d := c.Add(a)
	e := d.Relu()

	topo := TopoOrder(e)
	require.Equal(t, []*Value{a, b, c, d, e}, topo)

	pos := make(map[*Value]int, len(topo))
	for i, n := range topo {
		pos[n] = i
	}
	for _, n := range topo {
		for _, child := range n.Children() {
			assert.Less(t, pos[child], pos[n], "%v must come after its children", n)
		}
	}
}

func TestTopoOrderLeaf(t *testing.T) {
	a := NewValue(7)
	assert.Equal(t, []*Value{a}, TopoOrder(a))
}

func TestBackwardDeepChain(t *testing.T) {
	const depth = 200_000
	one := NewValue(1)
	x := NewValue(0)
	out := x
	for i := 0; i < depth; i++ {
		out = out.Add(one)
	}

	out.Backward()

	assert.Equal(t, float64(depth), out.Data)
	assert.Equal(t, 1.0, x.Grad)
	assert.Equal(t, float64(depth), one.Grad)
}

// TestBackwardMatchesFiniteDifferences checks analytic gradients of
// add/mul graphs against central finite differences.
func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	tests := []struct {
		name  string
		x     []float64
		build func(in []*Value) *Value
	}{
		{
			name: "polynomial",
			x:    []float64{0.7, -1.3, 2.1},
			build: func(in []*Value) *Value {
				a, b, c := in[0], in[1], in[2]
				return a.Mul(b).Add(c).Mul(a.Add(b.Mul(c))).Mul(a)
			},
		},
		{
			name: "shared subexpressions",
			x:    []float64{1.1, 0.4},
			build: func(in []*Value) *Value {
				a, b := in[0], in[1]
				s := a.Add(b)
				p := s.Mul(s)
				return p.Mul(a).Add(p).Add(s.Mul(b))
			},
		},
		{
			name: "dot product",
			x:    []float64{0.5, -0.25, 3, 1, 2, -4},
			build: func(in []*Value) *Value {
				sum := NewValue(0)
				for i := 0; i < 3; i++ {
					sum = sum.Add(in[i].Mul(in[i+3]))
				}
				return sum
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaves := func(x []float64) []*Value {
				in := make([]*Value, len(x))
				for i, xi := range x {
					in[i] = NewValue(xi)
				}
				return in
			}
			f := func(x []float64) float64 {
				return tt.build(leaves(x)).Data
			}

			want := fd.Gradient(nil, f, tt.x, &fd.Settings{Formula: fd.Central})

			in := leaves(tt.x)
			tt.build(in).Backward()
			got := make([]float64, len(in))
			for i, v := range in {
				got[i] = v.Grad
			}

			assert.True(t, floats.EqualApprox(want, got, 1e-5), "want %v, got %v", want, got)
		})
	}
}
