package fixtures

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a seed file: students, courses and the enrollments between
// them, optionally graded.
type Document struct {
	Students    []Student    `yaml:"students"`
	Courses     []Course     `yaml:"courses"`
	Enrollments []Enrollment `yaml:"enrollments"`
}

// Student is a seeded student record.
type Student struct {
	ID             string `yaml:"id"`
	FullName       string `yaml:"full_name"`
	Gender         string `yaml:"gender"`
	EnrollmentYear int    `yaml:"enrollment_year"`
	Email          string `yaml:"email"`
}

// Course is a seeded course record.
type Course struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Instructor string `yaml:"instructor"`
	Credits    int    `yaml:"credits"`
	Department string `yaml:"department"`
}

// Enrollment links a seeded student and course. Grade is kept as text so
// decimal values round-trip exactly.
type Enrollment struct {
	Student string  `yaml:"student"`
	Course  string  `yaml:"course"`
	Grade   *string `yaml:"grade"`
}

// LoadFile reads and validates a seed file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Load parses a seed document, rejecting unknown fields.
func Load(r io.Reader) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			return &doc, nil
		}
		return nil, fmt.Errorf("parse fixture yaml: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &doc, nil
}

func (d *Document) validate() error {
	students := make(map[string]struct{}, len(d.Students))
	for i, s := range d.Students {
		if s.ID == "" {
			return fmt.Errorf("students[%d]: id is required", i)
		}
		if _, dup := students[s.ID]; dup {
			return fmt.Errorf("students[%d]: duplicate id %s", i, s.ID)
		}
		students[s.ID] = struct{}{}
	}
	courses := make(map[string]struct{}, len(d.Courses))
	for i, c := range d.Courses {
		if c.ID == "" {
			return fmt.Errorf("courses[%d]: id is required", i)
		}
		if _, dup := courses[c.ID]; dup {
			return fmt.Errorf("courses[%d]: duplicate id %s", i, c.ID)
		}
		courses[c.ID] = struct{}{}
	}
	for i, e := range d.Enrollments {
		if e.Student == "" || e.Course == "" {
			return fmt.Errorf("enrollments[%d]: student and course are required", i)
		}
	}
	return nil
}
