// Package sounds keeps the operator-assigned sound cues of each bundle.
//
// Every bundle declaring sound cues gets a persistent soundCues collection
// in its namespace, seeded from the manifest. Operators assign a file from
// the bundle's sounds asset category to an assignable cue; the assignment
// survives daemon restarts and is cleared when the file leaves the sounds
// collection.
package sounds
