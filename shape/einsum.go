// Copyright (C) 2022 The OCANNL Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package shape

import (
	"fmt"
	"strconv"
	"strings"
)

// AxisLabel is one pseudo-label token from an einsum spec: either a
// named axis (to be unified across operands that share the label) or
// a fixed numeric index (spec: "Numeric tokens in labels mean fixed
// indices").
type AxisLabel struct {
	Name  string
	Fixed bool
	Index int
}

// OperandSpec is one section of a parsed einsum equation: its batch,
// input, and output axis labels, in that declaration order (matching
// Shape's own Batch/Input/Output fields).
type OperandSpec struct {
	Batch, Input, Output []AxisLabel
}

// EinsumSpec is a fully parsed einsum equation: one OperandSpec per
// left-hand operand, plus the result's OperandSpec.
type EinsumSpec struct {
	Operands []OperandSpec
	Result   OperandSpec
}

// ParseEinsum parses the compact einsum syntax described in spec
// section 4.1 and section 6: operand sections separated by ';', then
// "=>", then the result section. Within a section, '|' separates
// batch axes from the rest, and "->" separates input axes from output
// axes; any of the three parts may be empty.
func ParseEinsum(spec string) (EinsumSpec, error) {
	arrowParts := strings.SplitN(spec, "=>", 2)
	if len(arrowParts) != 2 {
		return EinsumSpec{}, fmt.Errorf("einsum spec %q missing '=>'", spec)
	}
	lhs := strings.Split(arrowParts[0], ";")
	out := EinsumSpec{Operands: make([]OperandSpec, len(lhs))}
	for i, s := range lhs {
		op, err := parseOperandSpec(s)
		if err != nil {
			return EinsumSpec{}, fmt.Errorf("einsum spec %q: operand %d: %w", spec, i, err)
		}
		out.Operands[i] = op
	}
	result, err := parseOperandSpec(arrowParts[1])
	if err != nil {
		return EinsumSpec{}, fmt.Errorf("einsum spec %q: result: %w", spec, err)
	}
	out.Result = result

	if err := checkLabelBalance(out); err != nil {
		return EinsumSpec{}, err
	}
	return out, nil
}

func parseOperandSpec(s string) (OperandSpec, error) {
	s = strings.TrimSpace(s)
	var batchPart, restPart string
	if i := strings.IndexByte(s, '|'); i >= 0 {
		batchPart, restPart = s[:i], s[i+1:]
	} else {
		restPart = s
	}
	var inputPart, outputPart string
	if i := strings.Index(restPart, "->"); i >= 0 {
		inputPart, outputPart = restPart[:i], restPart[i+2:]
	} else {
		outputPart = restPart
	}
	batch, err := parseAxisList(batchPart)
	if err != nil {
		return OperandSpec{}, err
	}
	input, err := parseAxisList(inputPart)
	if err != nil {
		return OperandSpec{}, err
	}
	output, err := parseAxisList(outputPart)
	if err != nil {
		return OperandSpec{}, err
	}
	return OperandSpec{Batch: batch, Input: input, Output: output}, nil
}

// parseAxisList splits one batch/input/output section into its
// per-axis labels. If the section contains any of the recognized
// separators (space, comma, parens) those are used to split tokens;
// otherwise every rune is its own one-character label, matching the
// terse "ij->ji" style shorthand.
func parseAxisList(s string) ([]AxisLabel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var tokens []string
	if strings.ContainsAny(s, " ,()") {
		s = strings.NewReplacer("(", " ", ")", " ", ",", " ").Replace(s)
		tokens = strings.Fields(s)
	} else {
		for _, r := range s {
			tokens = append(tokens, string(r))
		}
	}
	labels := make([]AxisLabel, len(tokens))
	for i, t := range tokens {
		if n, err := strconv.Atoi(t); err == nil {
			labels[i] = AxisLabel{Fixed: true, Index: n}
		} else {
			labels[i] = AxisLabel{Name: t}
		}
	}
	return labels, nil
}

// checkLabelBalance verifies that the symmetric difference of the
// operands' label sets equals the result's label set (spec section 6),
// i.e. every non-fixed label that appears in exactly one operand (or
// only the result) is a free/output axis, and anything appearing in
// more than one operand but not the result is contracted.
func checkLabelBalance(es EinsumSpec) error {
	count := map[string]int{}
	for _, op := range es.Operands {
		seen := map[string]bool{}
		for _, lbl := range allLabels(op) {
			if lbl.Fixed || seen[lbl.Name] {
				continue
			}
			seen[lbl.Name] = true
			count[lbl.Name]++
		}
	}
	resultNames := map[string]bool{}
	for _, lbl := range allLabels(es.Result) {
		if !lbl.Fixed {
			resultNames[lbl.Name] = true
		}
	}
	for name, n := range count {
		odd := n%2 == 1
		if odd != resultNames[name] {
			return fmt.Errorf("einsum label %q: symmetric-difference mismatch (appears in %d operands, in result=%v)", name, n, resultNames[name])
		}
	}
	for name := range resultNames {
		if count[name] == 0 {
			return fmt.Errorf("einsum label %q appears in result but no operand", name)
		}
	}
	return nil
}

func allLabels(op OperandSpec) []AxisLabel {
	out := make([]AxisLabel, 0, len(op.Batch)+len(op.Input)+len(op.Output))
	out = append(out, op.Batch...)
	out = append(out, op.Input...)
	out = append(out, op.Output...)
	return out
}
