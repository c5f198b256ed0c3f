/*
Package domain contains the core domain models of the Turnstile orchestrator.

It defines the conversation entities and the rules that can be checked on a
single value without any I/O. This package is kept pure and free of external
dependencies like persistence or model providers, following Hexagonal
Architecture principles.

# Key Entities

  - Turn: one message (human, assistant or system), optionally carrying a structured Payload.
  - Thread: the append-only, ordered history of one conversation (the message store).
  - Mode: the conversational state selected by the router (Gathering, Generating, AwaitingInput).
  - Signal detection: IsModeSwitch / ExtractPayload decide whether gathering has finished.
*/
package domain
