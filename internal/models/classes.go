package models

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// MaxClassID bounds ids read from a classes file.
const MaxClassID = 10000

// Classes maps a model class id to its human readable name.
type Classes []string

// Name returns the class name for id, or "class <id>" when unknown.
func (c Classes) Name(id int) string {
	if id >= 0 && id < len(c) && c[id] != "" {
		return c[id]
	}
	return fmt.Sprintf("class %d", id)
}

// classNames accepts both dataset layouts:
//
//	names: [pothole, crack]
//	names: {0: pothole, 1: crack}
type classNames Classes

func (n *classNames) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil

	case yaml.MappingNode:
		var byID map[string]string
		if err := value.Decode(&byID); err != nil {
			return err
		}

		ids := make([]int, 0, len(byID))
		named := make(map[int]string, len(byID))
		for k, v := range byID {
			id, err := strconv.Atoi(k)
			if err != nil || id < 0 {
				return errors.Errorf("invalid class id %q", k)
			}
			if id > MaxClassID {
				return errors.Errorf("class id %d above limit %d", id, MaxClassID)
			}
			ids = append(ids, id)
			named[id] = v
		}
		sort.Ints(ids)

		if len(ids) == 0 {
			*n = nil
			return nil
		}

		list := make([]string, ids[len(ids)-1]+1)
		for _, id := range ids {
			list[id] = named[id]
		}
		*n = list
		return nil
	}

	return errors.Errorf("names must be a list or a mapping, line %d", value.Line)
}

type classesFile struct {
	Names classNames `yaml:"names"`
}

// ParseClasses reads the names section of a dataset yaml.
func ParseClasses(data []byte) (Classes, error) {
	var f classesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing classes file")
	}
	return Classes(f.Names), nil
}

func LoadClasses(fs afero.Fs, path string) (Classes, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading classes file %s", path)
	}
	return ParseClasses(data)
}
