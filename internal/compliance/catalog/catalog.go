// Package catalog holds the regulations the engine assesses against.
//
// A Catalog is built once at startup, either from Default or from a YAML file,
// and is read-only afterwards. Lookups return copies.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Category groups requirements by the kind of control they describe.
type Category string

const (
	CategoryDataProtection   Category = "data_protection"
	CategoryAccessControl    Category = "access_control"
	CategoryAuditTrail       Category = "audit_trail"
	CategoryIncidentResponse Category = "incident_response"
	CategoryTraining         Category = "training"
	CategoryDocumentation    Category = "documentation"
)

// Frequency is how often a requirement should be assessed.
type Frequency string

const (
	FrequencyContinuous Frequency = "continuous"
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyAnnually   Frequency = "annually"
)

// Method is how a requirement is assessed.
type Method string

const (
	MethodAutomated Method = "automated"
	MethodManual    Method = "manual"
	MethodMixed     Method = "mixed"
)

// DefaultAdvice is returned for requirements without specific remediation advice.
const DefaultAdvice = "review and strengthen controls"

// Requirement is a single obligation within a regulation.
type Requirement struct {
	ID            string    `yaml:"id" json:"id" validate:"required"`
	Title         string    `yaml:"title" json:"title" validate:"required"`
	Mandatory     bool      `yaml:"mandatory" json:"mandatory"`
	Category      Category  `yaml:"category" json:"category" validate:"required,oneof=data_protection access_control audit_trail incident_response training documentation"`
	EvidenceTypes []string  `yaml:"evidence_types" json:"evidence_types"`
	Frequency     Frequency `yaml:"frequency" json:"frequency" validate:"required,oneof=continuous monthly quarterly annually"`
	Method        Method    `yaml:"method" json:"method" validate:"required,oneof=automated manual mixed"`
}

// Penalties describes consequences of non-compliance.
type Penalties struct {
	Financial   string `yaml:"financial" json:"financial,omitempty"`
	Operational string `yaml:"operational" json:"operational,omitempty"`
	Criminal    string `yaml:"criminal" json:"criminal,omitempty"`
}

// Artifacts lists what an organization is expected to maintain.
type Artifacts struct {
	Policies   []string `yaml:"policies" json:"policies,omitempty"`
	Procedures []string `yaml:"procedures" json:"procedures,omitempty"`
	Controls   []string `yaml:"controls" json:"controls,omitempty"`
	Monitoring []string `yaml:"monitoring" json:"monitoring,omitempty"`
}

// Regulation is a catalog entry.
type Regulation struct {
	ID            string        `yaml:"id" json:"id" validate:"required"`
	Name          string        `yaml:"name" json:"name" validate:"required"`
	Jurisdictions []string      `yaml:"jurisdictions" json:"jurisdictions,omitempty"`
	Industries    []string      `yaml:"industries" json:"industries,omitempty"`
	Requirements  []Requirement `yaml:"requirements" json:"requirements" validate:"min=1,dive"`
	Penalties     Penalties     `yaml:"penalties" json:"penalties"`
	Artifacts     Artifacts     `yaml:"artifacts" json:"artifacts"`
}

func (r Regulation) clone() Regulation {
	c := r
	c.Jurisdictions = append([]string(nil), r.Jurisdictions...)
	c.Industries = append([]string(nil), r.Industries...)
	c.Requirements = make([]Requirement, len(r.Requirements))
	for i, req := range r.Requirements {
		req.EvidenceTypes = append([]string(nil), req.EvidenceTypes...)
		c.Requirements[i] = req
	}
	c.Artifacts = Artifacts{
		Policies:   append([]string(nil), r.Artifacts.Policies...),
		Procedures: append([]string(nil), r.Artifacts.Procedures...),
		Controls:   append([]string(nil), r.Artifacts.Controls...),
		Monitoring: append([]string(nil), r.Artifacts.Monitoring...),
	}
	return c
}

// Catalog is an immutable, ordered set of regulations.
type Catalog struct {
	regulations []Regulation
	byID        map[string]int
	requirement map[string]string // requirement id -> regulation id
	advice      map[string]string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New validates regs and builds a catalog. Regulation and requirement ids
// must be unique across the whole catalog.
func New(regs []Regulation, advice map[string]string) (*Catalog, error) {
	if len(regs) == 0 {
		return nil, errors.New("catalog has no regulations")
	}
	c := &Catalog{
		byID:        make(map[string]int, len(regs)),
		requirement: make(map[string]string),
		advice:      make(map[string]string, len(advice)),
	}
	for _, reg := range regs {
		if err := validate.Struct(reg); err != nil {
			return nil, fmt.Errorf("regulation %q: %w", reg.ID, err)
		}
		if _, dup := c.byID[reg.ID]; dup {
			return nil, fmt.Errorf("duplicate regulation %q", reg.ID)
		}
		for _, req := range reg.Requirements {
			if other, dup := c.requirement[req.ID]; dup {
				return nil, fmt.Errorf("requirement %q defined by both %q and %q", req.ID, other, reg.ID)
			}
			c.requirement[req.ID] = reg.ID
		}
		c.byID[reg.ID] = len(c.regulations)
		c.regulations = append(c.regulations, reg.clone())
	}
	for id, text := range advice {
		if strings.TrimSpace(text) != "" {
			c.advice[id] = text
		}
	}
	return c, nil
}

type file struct {
	Regulations []Regulation      `yaml:"regulations"`
	Advice      map[string]string `yaml:"advice"`
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Regulations, f.Advice)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Get returns a copy of the regulation with id.
func (c *Catalog) Get(id string) (Regulation, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Regulation{}, false
	}
	return c.regulations[i].clone(), true
}

// List returns copies of every regulation in catalog order.
func (c *Catalog) List() []Regulation {
	out := make([]Regulation, len(c.regulations))
	for i, r := range c.regulations {
		out[i] = r.clone()
	}
	return out
}

// IDs returns regulation ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.regulations))
	for i, r := range c.regulations {
		out[i] = r.ID
	}
	return out
}

// Len returns the number of regulations.
func (c *Catalog) Len() int {
	return len(c.regulations)
}

// RegulationOf returns the regulation that defines requirementID.
func (c *Catalog) RegulationOf(requirementID string) (string, bool) {
	id, ok := c.requirement[requirementID]
	return id, ok
}

// Requirement returns a copy of the requirement with id.
func (c *Catalog) Requirement(id string) (Requirement, bool) {
	regID, ok := c.requirement[id]
	if !ok {
		return Requirement{}, false
	}
	for _, req := range c.regulations[c.byID[regID]].Requirements {
		if req.ID == id {
			req.EvidenceTypes = append([]string(nil), req.EvidenceTypes...)
			return req, true
		}
	}
	return Requirement{}, false
}

// Advice returns remediation advice for a requirement, falling back to DefaultAdvice.
func (c *Catalog) Advice(requirementID string) string {
	if a, ok := c.advice[requirementID]; ok {
		return a
	}
	return DefaultAdvice
}
