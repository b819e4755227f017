package codec

import "fmt"

// ChecksumWarning describes a check digit that does not match the digits it
// protects.
type ChecksumWarning struct {
	Field    string `json:"field"`
	Printed  string `json:"printed"`
	Expected string `json:"expected"`
}

func (w ChecksumWarning) String() string {
	return fmt.Sprintf("%s: printed %s, expected %s", w.Field, w.Printed, w.Expected)
}

// Verify recomputes the three field DVs (modulo 10) and the general DV
// (modulo 11) of a decoded boleto. It only reports; Decode never rejects a
// code because of a mismatch.
func Verify(m *BoletoMeta) []ChecksumWarning {
	if m == nil || len(m.LinhaDigitavel) != LinhaDigitavelLength || len(m.Barcode) != BarcodeLength {
		return nil
	}

	f := split(m.LinhaDigitavel)
	var warnings []ChecksumWarning

	check := func(name, printed string, expected int) {
		if want := fmt.Sprint(expected); printed != want {
			warnings = append(warnings, ChecksumWarning{Field: name, Printed: printed, Expected: want})
		}
	}

	check("dv1", f.dv1, mod10(f.campo1))
	check("dv2", f.dv2, mod10(f.campo2))
	check("dv3", f.dv3, mod10(f.campo3))
	check("dv_geral", f.dvGeral, mod11(m.Barcode[0:4]+m.Barcode[5:]))

	return warnings
}

// mod10 walks right to left with weights 2,1,2,1... summing the digits of
// each product.
func mod10(digits string) int {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		p := int(digits[i]-'0') * weight
		sum += p/10 + p%10
		if weight == 2 {
			weight = 1
		} else {
			weight = 2
		}
	}
	if r := sum % 10; r != 0 {
		return 10 - r
	}
	return 0
}

// mod11 walks right to left with weights 2..9 cycling; results 0, 10 and 11
// map to 1.
func mod11(digits string) int {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	r := 11 - sum%11
	if r == 0 || r == 10 || r == 11 {
		return 1
	}
	return r
}
