// Package security evaluates an auth configuration and reports settings that
// weaken it. It backs Config.SecurityReport and the doctor command.
package security
