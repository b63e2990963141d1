/*
Package domain contains the core domain models for agrobot.

It defines the conversation entities exchanged between the pipeline stages
(input normalization, topic gating, context assembly, model invocation and
history) and the error taxonomy used to report failures to the user. This
package is kept pure and free of external dependencies like I/O or persistence.

# Key Entities

  - Message: A single conversation entry (user or model) made of ordered Parts.
  - Part: Either a text fragment or a normalized Image.
  - NormalizedInput: The canonical form of an incoming request (text + optional image).
  - Response: The tagged result of a model call (text, or a raw payload to fall back on).
  - Hooks: Callbacks for observing turns and model calls.
*/
package domain
