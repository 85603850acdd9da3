package workout

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML workout and validates it.
func Parse(r io.Reader) (Workout, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var w Workout
	if err := dec.Decode(&w); err != nil {
		return Workout{}, fmt.Errorf("decode workout: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Workout{}, err
	}
	return w, nil
}

// Load reads a YAML workout file.
func Load(path string) (Workout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Workout{}, fmt.Errorf("read workout %s: %w", path, err)
	}
	w, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return Workout{}, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Marshal encodes a workout as YAML.
func Marshal(w Workout) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(w); err != nil {
		return nil, fmt.Errorf("encode workout: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
