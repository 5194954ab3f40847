// Package ircode holds the immutable lookup table that maps an air
// conditioner's capability space to opaque IR payloads.
//
// A table has two halves:
//
//   - mode tables: mode → fan → temperature → payload
//   - named actions: "on", "off", "dimmer", "turboCool", "turboHeat"
//
// Tables are loaded once from a JSON or YAML file. Missing entries are not
// pre-validated; they surface as ErrMissingCommand at lookup time so one
// absent code cannot take the whole device down.
//
// Temperature keys are canonicalised to their minimal decimal form at load
// ("23.0" and "23" both become "23") and lookups use the same formatting.
package ircode
