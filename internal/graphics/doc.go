// Package graphics tracks which clients have a bundle graphic open.
//
// Registrations live in the shared graphics:instances collection so every
// dashboard sees them. Single-instance graphics admit one open registration
// at a time; when its client disconnects the registration stays closed for a
// grace period so a reconnecting page can reclaim it before anyone else.
package graphics
