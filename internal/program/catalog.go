package program

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default_program.yaml
var defaultProgramYAML []byte

var ErrUnknownExercise = errors.New("unknown exercise")

// Catalog holds the (possibly customized) exercise specs and the ordered
// exercise list of every session.
type Catalog struct {
	Exercises map[string]ExerciseSpec `json:"exercises"`
	Sessions  map[SessionID][]string  `json:"sessions"`
}

type catalogFile struct {
	Exercises []ExerciseSpec         `yaml:"exercises"`
	Sessions  map[SessionID][]string `yaml:"sessions"`
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(defaultProgramYAML)
})

// DefaultCatalog returns a fresh copy of the built-in A/B/C program.
func DefaultCatalog() *Catalog {
	c, err := defaultCatalog()
	if err != nil {
		// embedded file is covered by tests
		panic(fmt.Sprintf("invalid embedded program: %s", err))
	}
	return c.Clone()
}

// LoadCatalog reads a YAML program definition from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		Exercises: make(map[string]ExerciseSpec, len(file.Exercises)),
		Sessions:  file.Sessions,
	}
	for _, ex := range file.Exercises {
		if _, exists := c.Exercises[ex.ID]; exists {
			return nil, fmt.Errorf("duplicate exercise id: %q", ex.ID)
		}
		c.Exercises[ex.ID] = ex
	}
	if c.Sessions == nil {
		c.Sessions = make(map[SessionID][]string)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Validate() error {
	for id, ex := range c.Exercises {
		if id == "" || ex.ID != id {
			return fmt.Errorf("exercise id mismatch: key %q, id %q", id, ex.ID)
		}
		if ex.Sets.Min < 1 || ex.Sets.Min > ex.Sets.Max {
			return fmt.Errorf("exercise %q: invalid sets range %s", id, ex.Sets)
		}
		if ex.Reps.Min < 1 || ex.Reps.Min > ex.Reps.Max {
			return fmt.Errorf("exercise %q: invalid reps range %s", id, ex.Reps)
		}
		if ex.StartCharge < 0 {
			return fmt.Errorf("exercise %q: negative start charge", id)
		}
	}
	for session, ids := range c.Sessions {
		if !session.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidSession, session)
		}
		for _, id := range ids {
			if _, ok := c.Exercises[id]; !ok {
				return fmt.Errorf("session %s: %w: %q", session, ErrUnknownExercise, id)
			}
		}
	}
	return nil
}

func (c *Catalog) Exercise(id string) (ExerciseSpec, bool) {
	ex, ok := c.Exercises[id]
	return ex, ok
}

// SessionExercises returns the specs of a session, in program order.
func (c *Catalog) SessionExercises(session SessionID) []ExerciseSpec {
	ids := c.Sessions[session]
	specs := make([]ExerciseSpec, 0, len(ids))
	for _, id := range ids {
		if ex, ok := c.Exercises[id]; ok {
			specs = append(specs, ex)
		}
	}
	return specs
}

func (c *Catalog) Clone() *Catalog {
	clone := &Catalog{
		Exercises: make(map[string]ExerciseSpec, len(c.Exercises)),
		Sessions:  make(map[SessionID][]string, len(c.Sessions)),
	}
	for id, ex := range c.Exercises {
		clone.Exercises[id] = ex
	}
	for s, ids := range c.Sessions {
		clone.Sessions[s] = append([]string(nil), ids...)
	}
	return clone
}
