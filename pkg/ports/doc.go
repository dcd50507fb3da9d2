/*
Package ports defines the driven ports (interfaces) of the storygraph engine.

These interfaces decouple the session engine and the validator from concrete
storage, so the same core runs against memory, Redis or Postgres adapters.

# Key Interfaces

  - GraphAccessor: read-only queries over stories, nodes and choices.
  - ProgressStore: per-(player, story) progress records.
  - StatsStore: per-player aggregates.
  - Transactor: runs progress and stats writes as one unit of work.
  - DistributedLocker: serializes access to a (player, story) pair across replicas.
*/
package ports
