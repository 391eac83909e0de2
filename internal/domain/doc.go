// Package domain contains the core entities of a streamed optimization problem.
//
// This package is the innermost layer of termstream. It has no dependencies on
// storage, transport or logging and holds only the data model and its rules.
//
// # Entities
//
//   - [Term]: one summand of the cost function (coefficient + variable indices)
//   - [TermBatch]: an ordered group of terms handed from producer to uploader,
//     or the [EndOfStream] marker
//   - [ProblemStats]: running coupling statistics attached to the sealed object
//   - [Problem]: the fully materialized, in-memory form of a problem
//
// Entities are immutable after construction where practical. [ProblemStats]
// is the exception: it is owned and mutated by a single producer.
package domain
