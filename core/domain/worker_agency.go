package domain

// AgencyProfile is a catalog entry. A non-empty Topic or Keywords replaces the
// generated value for that agency.
type AgencyProfile struct {
	Name     string   `json:"name" yaml:"name"`
	Topic    string   `json:"topic,omitempty" yaml:"topic,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}
