package runtime

// DefaultGatheringInstruction is used when no gathering instruction is configured.
const DefaultGatheringInstruction = `Your job is to get information from the user about what type of prompt template they want to create.

You should get the following information from them:

- What the objective of the prompt is
- What variables will be passed into the prompt template
- Any constraints for what the output should NOT do
- Any requirements that the output MUST adhere to

If you are not able to discern this info, ask them to clarify! Do not attempt to wildly guess.

After you are able to discern all the information, call the PromptInstructions tool.`

// DefaultGeneratingInstruction is rendered with the mode-switch payload.
const DefaultGeneratingInstruction = `Based on the following requirements, write a good prompt template:

Objective: {{.Objective}}

Variables:
{{bullets .Variables}}

Constraints:
{{bullets .Constraints}}

Requirements:
{{bullets .Requirements}}`
