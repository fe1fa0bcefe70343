/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package query

// Expression is a node of the predicate tree. The set of node kinds is
// closed: Nullary, Unary, Binary, Facet and Value.
type Expression interface {
	expression()
}

// UnaryOp is the operator of a Unary node.
type UnaryOp int

const (
	Not UnaryOp = iota
	IsNullOp
	IsNotNullOp
)

// BinaryOp is the operator of a Binary node.
type BinaryOp int

const (
	AndOp BinaryOp = iota
	OrOp
	EqOp
	NeOp
	GtOp
	GeOp
	LtOp
	LeOp
	LikeOp
)

// Nullary is the always-true predicate.
type Nullary struct{}

// Unary applies an operator to one operand.
type Unary struct {
	Op      UnaryOp
	Operand Expression
}

// Binary applies an operator to two operands.
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

// Facet references a mapped property by name.
type Facet struct {
	Name string
}

// Value is a literal.
type Value struct {
	Value any
}

func (Nullary) expression() {}
func (Unary) expression()   {}
func (Binary) expression()  {}
func (Facet) expression()   {}
func (Value) expression()   {}

// True returns the always-true predicate.
func True() Expression { return Nullary{} }

// F references the mapped property name.
func F(name string) Facet { return Facet{Name: name} }

// V wraps a literal value.
func V(v any) Value { return Value{Value: v} }

func And(left, right Expression) Expression { return Binary{Op: AndOp, Left: left, Right: right} }
func Or(left, right Expression) Expression  { return Binary{Op: OrOp, Left: left, Right: right} }

// Eq compares a property with a literal for equality.
func Eq(name string, v any) Expression { return Binary{Op: EqOp, Left: F(name), Right: V(v)} }
func Ne(name string, v any) Expression { return Binary{Op: NeOp, Left: F(name), Right: V(v)} }
func Gt(name string, v any) Expression { return Binary{Op: GtOp, Left: F(name), Right: V(v)} }
func Ge(name string, v any) Expression { return Binary{Op: GeOp, Left: F(name), Right: V(v)} }
func Lt(name string, v any) Expression { return Binary{Op: LtOp, Left: F(name), Right: V(v)} }
func Le(name string, v any) Expression { return Binary{Op: LeOp, Left: F(name), Right: V(v)} }

// Like matches a property against a LIKE pattern.
func Like(name string, pattern string) Expression {
	return Binary{Op: LikeOp, Left: F(name), Right: V(pattern)}
}

// NotExpr negates e.
func NotExpr(e Expression) Expression { return Unary{Op: Not, Operand: e} }

// IsNull tests a property for NULL.
func IsNull(name string) Expression { return Unary{Op: IsNullOp, Operand: F(name)} }

// IsNotNull tests a property for NOT NULL.
func IsNotNull(name string) Expression { return Unary{Op: IsNotNullOp, Operand: F(name)} }

// All joins expressions with AND. No expressions yields True.
func All(exprs ...Expression) Expression {
	return fold(AndOp, exprs)
}

// Any joins expressions with OR. No expressions yields True.
func Any(exprs ...Expression) Expression {
	return fold(OrOp, exprs)
}

func fold(op BinaryOp, exprs []Expression) Expression {
	if len(exprs) == 0 {
		return True()
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = Binary{Op: op, Left: out, Right: e}
	}
	return out
}
