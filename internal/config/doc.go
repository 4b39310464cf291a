// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// which is the intended way to supply upstream credentials:
//
//	upstream:
//	  api_key: ${BFX_API_KEY}
//	  api_secret: ${BFX_API_SECRET}
//	  proxy: true
package config
