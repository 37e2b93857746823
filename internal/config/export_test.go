package config

import "github.com/spf13/afero"

func OverrideFS(f afero.Fs) func() {
	prev := fs
	fs = f
	return func() { fs = prev }
}
