/*
Package ports defines the driven ports (interfaces) of the agrobot pipeline.

These interfaces decouple the conversation logic from external
implementations, allowing the bot to run against different model providers
and history backends.

# Key Interfaces

  - Generator: sends assembled contents to a multimodal model (e.g., Gemini).
  - HistoryStore: keeps the bounded conversation history (Memory or Redis).
  - DistributedLocker: serializes turns of one conversation across replicas.
*/
package ports
