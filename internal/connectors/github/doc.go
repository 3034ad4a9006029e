// Package github serves "github" locations: text files in GitHub
// repositories, whose blank-line separated paragraphs are the content
// segments.
//
// # Locations
//
// The raw id is "{owner}/{repo}/{path}", for example
// "github_acme/handbook/docs/onboarding.md". Files are read from and
// committed to the repository's default branch.
//
// # Authentication
//
// A personal access token with contents write access is required for
// propagation. Read-only tokens can serve as a source only.
//
// # Rate Limiting
//
// The client implements a dual-strategy rate limiting approach:
//
//  1. Proactive throttling: a token bucket limits requests to approximately
//     1.2 requests per second, staying under the 5,000/hour limit.
//
//  2. Reactive handling: the client monitors X-RateLimit-Remaining and
//     X-RateLimit-Reset headers. When limits are exhausted, it waits until
//     the reset time before continuing.
//
// # Writes
//
// Each write reads the file with its blob SHA, replaces paragraphs equal to
// the block's previous content, and commits with that SHA, so a concurrent
// edit on GitHub fails the write with a conflict instead of being
// overwritten. Writes to the same file from one process are serialised.
package github
