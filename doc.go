// # Go Client Package for the Baduanjin Pi-Live Device Relay
//
// This repository provides a Go package for coordinating live Baduanjin practice sessions against a Raspberry-Pi camera and pose-inference device exposed through a relay HTTP API. It covers session and recording lifecycles, exercise-form tracking, a unified status/frame/feedback poller folding everything into one shared state record, and the post-session save-or-discard workflow.
package pilive
