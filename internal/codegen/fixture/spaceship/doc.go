// Package spaceship is the checked-in output of statecraft for
// spaceship.yaml. It keeps the generated typed API compiling and lets the
// codegen tests detect drift between the template and this file.
package spaceship

//go:generate go run github.com/garyjia/statecraft/cmd/statecraft generate --output . --per-package-dirs=false --cache=false spaceship.yaml
