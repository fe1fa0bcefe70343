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

package compiler

import (
	"fmt"
	"strings"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/fault"
	"github.com/tomoncle/datamap/mapping"
	"github.com/tomoncle/datamap/query"
)

var binaryOperators = map[query.BinaryOp]string{
	query.AndOp:  "AND",
	query.OrOp:   "OR",
	query.EqOp:   "=",
	query.NeOp:   "<>",
	query.GtOp:   ">",
	query.GeOp:   ">=",
	query.LtOp:   "<",
	query.LeOp:   "<=",
	query.LikeOp: "LIKE",
}

// Predicate is the compiled form of a query: paging restriction, sort
// clause, predicate text, the parameters it references and their literal
// values, both in parameter order.
type Predicate struct {
	Top        string
	Sort       string
	Text       string
	Parameters []command.Parameter
	Values     []any
}

// CompilePredicate compiles q against m. Sort and paging are resolved
// before the predicate tree is visited.
func CompilePredicate(m *mapping.Mapping, alias string, q *query.Query) (*Predicate, error) {
	if m == nil {
		return nil, fault.Precondition("mapping")
	}
	if q == nil {
		return nil, fault.Precondition("query")
	}
	v := &visitor{m: m, alias: alias, q: q}

	pred := &Predicate{}
	if q.Page.Restricted() {
		pred.Top = fmt.Sprintf("TOP %d", q.Page.Limit())
	}
	sort, err := v.sort()
	if err != nil {
		return nil, err
	}
	pred.Sort = sort

	var root query.Expression = query.Nullary{}
	if q.Expression != nil {
		root = q.Expression
	}
	if err := v.visit(root); err != nil {
		return nil, err
	}
	pred.Text = v.sb.String()
	pred.Parameters = v.ps.list
	pred.Values = v.values
	return pred, nil
}

type visitor struct {
	m      *mapping.Mapping
	alias  string
	q      *query.Query
	sb     strings.Builder
	ps     parameters
	values []any
}

func (v *visitor) sort() (string, error) {
	if len(v.q.Orders) == 0 {
		return keySort(v.m, v.alias), nil
	}
	terms := make([]string, 0, len(v.q.Orders))
	for _, o := range v.q.Orders {
		col, ok := v.m.Column(o.Facet.Name)
		if !ok {
			return "", unknownMember(v.m, o.Facet.Name, "order")
		}
		dir := "DESC"
		if o.Ascending {
			dir = "ASC"
		}
		terms = append(terms, v.alias+"."+Quote(col.Name)+" "+dir)
	}
	return strings.Join(terms, ", "), nil
}

func (v *visitor) visit(e query.Expression) error {
	switch n := e.(type) {
	case query.Nullary, *query.Nullary:
		v.sb.WriteString("(1 = 1)")
	case query.Unary:
		return v.unary(n)
	case *query.Unary:
		return v.unary(*n)
	case query.Binary:
		return v.binary(n)
	case *query.Binary:
		return v.binary(*n)
	case query.Facet:
		return v.facet(n)
	case *query.Facet:
		return v.facet(*n)
	case query.Value:
		v.value(n)
	case *query.Value:
		v.value(*n)
	case nil:
		return fault.InvalidOperation("nil expression operand in %s query", v.m.Table.TypeName())
	default:
		return fault.InvalidOperation("unsupported expression %T", e)
	}
	return nil
}

func (v *visitor) unary(n query.Unary) error {
	switch n.Op {
	case query.Not:
		v.sb.WriteString("NOT (")
		if err := v.visit(n.Operand); err != nil {
			return err
		}
		v.sb.WriteString(")")
	case query.IsNullOp, query.IsNotNullOp:
		v.sb.WriteString("(")
		if err := v.visit(n.Operand); err != nil {
			return err
		}
		if n.Op == query.IsNullOp {
			v.sb.WriteString(") IS NULL")
		} else {
			v.sb.WriteString(") IS NOT NULL")
		}
	default:
		return fault.InvalidOperation("unsupported unary operator %d", n.Op)
	}
	return nil
}

func (v *visitor) binary(n query.Binary) error {
	op, ok := binaryOperators[n.Op]
	if !ok {
		return fault.InvalidOperation("unsupported binary operator %d", n.Op)
	}
	v.sb.WriteString("(")
	if err := v.visit(n.Left); err != nil {
		return err
	}
	v.sb.WriteString(" " + op + " ")
	if err := v.visit(n.Right); err != nil {
		return err
	}
	v.sb.WriteString(")")
	return nil
}

func (v *visitor) facet(n query.Facet) error {
	col, ok := v.m.Column(n.Name)
	if !ok {
		return unknownMember(v.m, n.Name, "facet")
	}
	v.sb.WriteString(v.alias + "." + Quote(col.Name))
	return nil
}

func (v *visitor) value(n query.Value) {
	name := v.ps.literal(n.Value)
	v.q.Bind(name, n.Value)
	v.values = append(v.values, n.Value)
	v.sb.WriteString(name)
}
