/*
Package config reads ZAKURO_* environment variables into WorkerConfig
and BrokerConfig. There is no config-file parser: spec.md explicitly
excludes configuration file parsing from scope, so every setting comes
from the environment with a documented default.
*/
package config
