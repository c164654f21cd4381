/*
Package config loads flow files and reads node settings.

# Flow Files

A flow file lists nodes and the wires between them, in YAML or JSON:

	name: telemetry
	pipeline: main
	nodes:
	  - id: sensors
	    type: nats-in
	    config:
	      subjects: ["sensors.>"]
	  - id: tag
	    type: change
	    config:
	      property: source
	      value: field
	  - id: log
	    type: debug
	wires:
	  - {from: sensors, to: tag}
	  - {from: tag, to: log}

Load it with LoadFlowFile, or parse bytes with ParseFlowYAML and
ParseFlowJSON. All three validate the result; problems come back as
*errors.ConfigError values joined together.

# Node Settings

NodeSpec.Settings wraps a node's config block in a Config. Accessors take a
default that is returned when the key is missing or has the wrong type:

	s := spec.Settings()
	subject := s.String("subject", "")
	timeout := s.Duration("timeout", 2*time.Second) // "2s" or 2
	subjects := s.StringSlice("subjects", nil)       // "a" or ["a", "b"]

Numbers decoded from YAML arrive as int and from JSON as float64; Int and
Float accept both. Int rejects floats with a fractional part.

A Config is safe for concurrent reads as long as the map it wraps is not
modified.
*/
package config
