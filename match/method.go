package match

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Method is the template matching score function.  Only normalized methods
// where the best match is the maximum score are supported
type Method int

const (
	// NormedCorrelation is normalized cross correlation (TM_CCORR_NORMED)
	NormedCorrelation Method = iota
	// NormedCorrelationCoefficient is the normalized correlation coefficient
	// (TM_CCOEFF_NORMED), which subtracts the mean before correlating
	NormedCorrelationCoefficient
)

// String returns the readable name of the method
func (m Method) String() string {
	switch m {
	case NormedCorrelation:
		return "normed_correlation"
	case NormedCorrelationCoefficient:
		return "normed_correlation_coefficient"
	default:
		return fmt.Sprintf("unknown method %d", int(m))
	}
}

// ParseMethod returns the Method matching the given name
func ParseMethod(name string) (Method, error) {
	switch name {
	case "normed_correlation", "ccorr_normed":
		return NormedCorrelation, nil
	case "normed_correlation_coefficient", "ccoeff_normed":
		return NormedCorrelationCoefficient, nil
	default:
		return NormedCorrelation, fmt.Errorf("unknown match method %q", name)
	}
}

// Validate returns an error if m is not a known method
func (m Method) Validate() error {

	if m != NormedCorrelation && m != NormedCorrelationCoefficient {
		return fmt.Errorf("unknown match method %d", int(m))
	}

	return nil
}

// MarshalText encodes the method by name
func (m Method) MarshalText() ([]byte, error) {

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return []byte(m.String()), nil
}

// UnmarshalText decodes a method name
func (m *Method) UnmarshalText(text []byte) error {

	v, err := ParseMethod(string(text))

	if err != nil {
		return err
	}

	*m = v
	return nil
}

// mode maps the Method to the gocv template match mode
func (m Method) mode() gocv.TemplateMatchMode {
	if m == NormedCorrelationCoefficient {
		return gocv.TmCcoeffNormed
	}
	return gocv.TmCcorrNormed
}
