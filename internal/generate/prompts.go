package generate

const classifyPrompt = `You are a document classification service for a compliance system.

Classify the document excerpt below as exactly one of: contract, policy, invoice, hr_form, unknown.

Respond with JSON only, no prose:
{
  "document_type": "<label>",
  "confidence": <0.0-1.0>
}

Document excerpt:
---
%s
---`

const rewritePrompt = `You are a compliance rewrite assistant. Propose a minimal fix for the
flagged passage below so it satisfies the cited policy while preserving the
author's intent. Style constraint: %s.

Policy context:
%s

Approved template reference:
%s

Respond with JSON only, no prose:
{
  "replacement": "<rewritten passage>",
  "explanation": ["<reason>", "..."],
  "citations": ["<policy or rule id>", "..."],
  "redaction_flag": <true|false>
}

Flagged passage (sensitive values already redacted):
---
%s
---`
