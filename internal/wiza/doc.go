// Package wiza reveals contact details for LinkedIn profiles through the Wiza
// individual reveal API.
//
// A reveal is asynchronous: StartReveal queues it and WaitForReveal polls until
// Wiza reports it complete or failed. Enricher drives reveals for every agent
// of a handoff file.
package wiza
