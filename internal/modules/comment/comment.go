// Package comment implements comment moderation: submission, the approval
// state machine and the per-page ordering of approved comments.
//
// Files in this package:
//   - types.go: DTOs, response structs, sentinel errors, ValidationError
//   - validate.go: submission validation (required fields, rating, challenge)
//   - filter.go: text filters rendering ContentHTML
//   - repository.go: Repository interface and its gorm implementation
//   - ordering.go: OrderedList, dense per-page positions
//   - moderator.go: Moderator, the approve/unapprove state machine
//   - notify.go: post-commit collaborators (notification, page cache)
//   - service.go: Service orchestrating submission and templating queries
//   - handler.go: Handler struct, route registration, and HTTP handlers
package comment
