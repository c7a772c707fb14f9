/*
Package config loads the two kinds of configuration finbot runs with.

# Process configuration

Env holds everything that differs between deployments: credentials, the
checkpoint backend, timeouts and logging. It is read from the environment
with envconfig after an optional .env file has been loaded:

	env, err := config.Load(".env")
	if err != nil {
	    log.Fatal(err)
	}

Every variable is prefixed FINBOT_ and has a default except the Anthropic
API key.

# Domain tables

Tables holds the data the conversation logic is driven by: the label sets the
classifier picks from together with their synonyms, the slot schema of every
calculator category, the product-category mapping and prompt overrides.
DefaultTables returns the compiled-in set. LoadTables reads a YAML or JSON
file and overlays it on the defaults key by key, so a file only needs the
entries it changes:

	tables, err := config.LoadTables("tables.yaml")

A label set or slot category present in the file replaces the default one
entirely; it is never merged field by field.
*/
package config
