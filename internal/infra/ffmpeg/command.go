package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strings"

	"telegram-media-converter/internal/domain"
)

// Command is a fully specified argument list for an external tool.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// builder assembles a Command and remembers the first invalid argument.
type builder struct {
	name string
	args []string
	err  error
}

func newBuilder(name string, leading ...string) *builder {
	return &builder{name: name, args: append([]string(nil), leading...)}
}

// flag appends an option and its values verbatim. Only use it for constants
// and numbers produced by this package.
func (b *builder) flag(name string, values ...string) *builder {
	b.args = append(b.args, name)
	b.args = append(b.args, values...)
	return b
}

// input appends "-i <path>" after validating the path.
func (b *builder) input(path string) *builder {
	return b.flag("-i").path(path)
}

// path appends a file path after validating it.
func (b *builder) path(p string) *builder {
	if b.err == nil {
		if err := validatePath(p); err != nil {
			b.err = err
		}
	}
	b.args = append(b.args, p)
	return b
}

func (b *builder) build() (Command, error) {
	if b.err != nil {
		return Command{}, b.err
	}
	if strings.TrimSpace(b.name) == "" {
		return Command{}, fmt.Errorf("%w: empty tool name", domain.ErrInvalidArgument)
	}
	return Command{Name: b.name, Args: b.args}, nil
}

// validatePath rejects anything the tools could read as an option or that
// could escape the scratch directory.
func validatePath(p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return fmt.Errorf("%w: empty path", domain.ErrUnsafePath)
	case strings.ContainsAny(p, "\x00\n\r"):
		return fmt.Errorf("%w: control character in %q", domain.ErrUnsafePath, p)
	case strings.HasPrefix(p, "-"):
		return fmt.Errorf("%w: %q looks like an option", domain.ErrUnsafePath, p)
	}
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return fmt.Errorf("%w: parent reference in %q", domain.ErrUnsafePath, p)
		}
	}
	return nil
}
