// Package validate checks a symbolication request's modules and stacks
// against the wire format before any of it is trusted by the rest of the
// core. The payload arrives as loosely-typed JSON (client-controlled,
// adversarial), so validation works over `any` the same way the original
// Python resource did duck-typed isinstance checks, rather than relying on
// encoding/json struct decoding to reject malformed shapes silently or with
// the wrong error kind.
package validate

import (
	"fmt"
	"regexp"

	"github.com/honeycombio/crash-symbolicator/internal/model"
)

// InvalidModulesError is returned when the memoryMap fails validation.
type InvalidModulesError struct{ Msg string }

func (e *InvalidModulesError) Error() string { return e.Msg }

// InvalidStacksError is returned when the stacks fail validation.
type InvalidStacksError struct{ Msg string }

func (e *InvalidStacksError) Error() string { return e.Msg }

var (
	// validDebugID matches zero or more hex characters.
	validDebugID = regexp.MustCompile(`^[A-Fa-f0-9]*$`)

	// validDebugFilename matches zero or more alphanumeric characters, some
	// punctuation, and spaces.
	validDebugFilename = regexp.MustCompile(`^[A-Za-z0-9_.+{}@<> ~\-]*$`)
)

// Modules validates the raw memoryMap value and returns the typed module
// table. modules must be a JSON array of 2-element [debug_filename, debug_id]
// arrays of strings.
func Modules(raw any) ([]model.Module, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, &InvalidModulesError{Msg: "modules must be a list"}
	}

	out := make([]model.Module, len(list))
	for i, item := range list {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, &InvalidModulesError{
				Msg: fmt.Sprintf("module index %d does not have a debug_filename and debug_id", i),
			}
		}

		debugFilename, ok := pair[0].(string)
		if !ok || !validDebugFilename.MatchString(debugFilename) {
			return nil, &InvalidModulesError{
				Msg: fmt.Sprintf("module index %d has an invalid debug_filename", i),
			}
		}

		debugID, ok := pair[1].(string)
		if !ok || !validDebugID.MatchString(debugID) {
			return nil, &InvalidModulesError{
				Msg: fmt.Sprintf("module index %d has an invalid debug_id", i),
			}
		}

		out[i] = model.Module{DebugFilename: debugFilename, DebugID: debugID}
	}

	return out, nil
}

// Stacks validates the raw stacks value against the already-validated
// module count and returns the typed stack list. stacks must be a non-empty
// JSON array of arrays of 2-element [module_index, module_offset] integer
// arrays.
func Stacks(raw any, numModules int) ([][]model.Frame, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, &InvalidStacksError{Msg: "stacks must be a list of lists"}
	}
	if len(list) == 0 {
		return nil, &InvalidStacksError{Msg: "no stacks specified"}
	}

	out := make([][]model.Frame, len(list))
	for i, rawStack := range list {
		stack, ok := rawStack.([]any)
		if !ok {
			return nil, &InvalidStacksError{Msg: fmt.Sprintf("stack %d is not a list", i)}
		}

		frames := make([]model.Frame, len(stack))
		for fi, rawFrame := range stack {
			pair, ok := rawFrame.([]any)
			if !ok || len(pair) != 2 {
				return nil, &InvalidStacksError{
					Msg: fmt.Sprintf("stack %d frame %d is not a list of two items", i, fi),
				}
			}

			moduleIndex, ok := asInt(pair[0])
			if !ok {
				return nil, &InvalidStacksError{
					Msg: fmt.Sprintf("stack %d frame %d has an invalid module_index", i, fi),
				}
			}
			// module_index is -1 if the memory address isn't in a module.
			if moduleIndex < -1 || moduleIndex >= numModules {
				return nil, &InvalidStacksError{
					Msg: fmt.Sprintf("stack %d frame %d has a module_index that isn't in modules", i, fi),
				}
			}

			moduleOffset, ok := asInt(pair[1])
			if !ok || moduleOffset < -1 {
				return nil, &InvalidStacksError{
					Msg: fmt.Sprintf("stack %d frame %d has an invalid module_offset", i, fi),
				}
			}

			frames[fi] = model.Frame{ModuleIndex: moduleIndex, ModuleOffset: moduleOffset}
		}
		out[i] = frames
	}

	return out, nil
}

// asInt reports whether v decoded from JSON (a float64) is an integer, and
// returns it as an int. JSON has no integer type, so "is this an int" is
// "is this a whole-numbered float64" the same way Python's json module
// preserves int vs float and isinstance(x, int) distinguishes them -- we
// approximate that by requiring an exact integral value.
func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	i := int(f)
	if float64(i) != f {
		return 0, false
	}
	return i, true
}
