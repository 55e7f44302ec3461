// Package testsupport builds isolated configurations, bundles and stores for
// tests.
package testsupport
