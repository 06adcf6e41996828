// Package testutil builds audio fixtures and model files for tests.
package testutil
