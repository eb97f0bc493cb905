// Package backup drives one backup cycle for a GitHub organization: list
// repositories, apply match rules, and for each survivor run the
// exists-check / clone / package / upload / verify / issue-export procedure.
// Failures are isolated per repository; the cycle always produces one record
// per selected repository.
package backup
