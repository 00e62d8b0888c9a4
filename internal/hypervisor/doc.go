// Package hypervisor defines the provisioning backend port.
//
// This is the anti-corruption layer between the request platform and whatever
// actually runs VMs. All methods accept and return platform types; raw backend
// errors never cross the port. Every failure is translated into an *Error
// carrying exactly one taxonomy code, and retriability is fixed by that code
// rather than decided per call site.
package hypervisor
