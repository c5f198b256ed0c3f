/*
Package ports defines the driven ports (interfaces) for the Turnstile orchestrator.

These interfaces decouple the core logic from external implementations, allowing
the orchestrator to work with various storage backends, model providers, and
lock managers.

# Key Interfaces

  - CheckpointStore: Responsible for persisting and loading conversation threads.
  - Generator: The external language model call that produces assistant turns.
  - DistributedLocker: Provides distributed locking for serializing submits across replicas.
*/
package ports
