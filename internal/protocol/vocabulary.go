package protocol

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// NumSlots is the number of racer slots on the gate.
const NumSlots = 8

// Vocabulary is the static wire contract with the gate: command literals,
// racer slot handles and mode names. It is read-only after loading.
type Vocabulary struct {
	commands map[string]string
	slots    map[int]string
	modes    map[string]string
}

type vocabularyFile struct {
	Commands map[string]string `yaml:"commands"`
	Slots    map[int]string    `yaml:"slots"`
	Modes    map[string]string `yaml:"modes"`
}

// DefaultVocabulary returns the vocabulary compiled into the binary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary is invalid: %v", err))
	}
	return v
}

// LoadVocabulary reads a vocabulary table from a YAML file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary parses a YAML vocabulary table.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if len(f.Commands) == 0 {
		return nil, fmt.Errorf("vocabulary has no commands")
	}
	for key, literal := range f.Commands {
		if _, err := ParseKind(key); err != nil {
			return nil, err
		}
		if !isASCII(literal) {
			return nil, fmt.Errorf("command %q: %w", key, ErrNonASCII)
		}
	}
	for slot := range f.Slots {
		if slot < 1 || slot > NumSlots {
			return nil, fmt.Errorf("slot %d: %w", slot, ErrInvalidRacer)
		}
	}

	v := &Vocabulary{
		commands: make(map[string]string, len(f.Commands)),
		slots:    make(map[int]string, len(f.Slots)),
		modes:    make(map[string]string, len(f.Modes)),
	}
	for k, c := range f.Commands {
		v.commands[k] = c
	}
	for k, s := range f.Slots {
		v.slots[k] = s
	}
	for k, m := range f.Modes {
		v.modes[k] = m
	}
	return v, nil
}

// Command returns the literal command prefix for a kind.
func (v *Vocabulary) Command(k Kind) (string, error) {
	c, ok := v.commands[k.Key()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, k.Key())
	}
	return c, nil
}

// Slot returns the device slot handle for a racer index.
func (v *Vocabulary) Slot(racer int) (string, error) {
	s, ok := v.slots[racer]
	if !ok {
		return "", fmt.Errorf("racer %d: %w", racer, ErrInvalidRacer)
	}
	return s, nil
}

// Mode maps a device mode code to its name.
func (v *Vocabulary) Mode(code string) (string, error) {
	if m, ok := v.modes[code]; ok {
		return m, nil
	}
	// codes may come back zero-padded
	if n, err := strconv.Atoi(code); err == nil {
		if m, ok := v.modes[strconv.Itoa(n)]; ok {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, code)
}
