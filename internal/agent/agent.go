// Package agent defines the orchestrator and its specialized sub-agents,
// and the think/act loop that drives them against the LLM backend.
package agent

import (
	"github.com/atrium-ai/atrium/internal/memory"
	"github.com/atrium-ai/atrium/internal/tool"
	"github.com/atrium-ai/atrium/pkg/types"
)

// Agent is one named model persona with its own instruction and tools.
// Sub-agents are reachable only through delegation from their parent.
type Agent struct {
	Name        string
	Description string
	Instruction string
	Tools       *tool.Registry
	SubAgents   []*Agent
}

// SubAgent returns the named sub-agent.
func (a *Agent) SubAgent(name string) (*Agent, bool) {
	for _, sub := range a.SubAgents {
		if sub.Name == name {
			return sub, true
		}
	}
	return nil, false
}

const orchestratorInstruction = `You are the Master Orchestrator Agent. Your role is to delegate tasks to specialized sub-agents.

**Available Sub-Agents:**
1. **data_science_agent**: Use this agent to retrieve data from the user's connected services (Gmail, Google Chat, Google Drive, Slack, GitHub).
   - Call this when the user asks about their emails, messages, files, repositories, or any internal data.

2. **research_agent**: Use this agent for web research and finding external information.
   - Call this when the user needs information from the internet or latest trends.

3. **memory_agent**: Use this agent for long-term memory storage and retrieval.
   - Call this when you need to remember user preferences or recall past context.

**Important Rules:**
- **Use delegate_to_agent** to hand the task to the appropriate sub-agent.
- **Pass the full user query** to the appropriate agent - let the sub-agent handle the details.
- **After receiving the agent's response**, format it nicely and present it to the user.
- **Do NOT retry** if an agent returns an error - just inform the user.
- **Be concise** in your final response to the user.`

const dataAgentInstruction = `You are a Data Retrieval Agent with access to the user's connected services.

**Instructions:**
1. Pick the tool matching the service the user asked about.
2. If a tool reports the service is not connected, tell the user to connect it instead of retrying.
3. Summarize raw results into a short, readable answer.`

const researchAgentInstruction = `You are a Deep Research Agent. Your goal is to provide comprehensive answers by researching the web.

**Instructions:**
1.  **Analyze**: Identify key search terms from the user's request.
2.  **Search**: Use 'search_web' to find relevant sources.
3.  **Scrape**: Use 'scrape_website' to gather details from promising search results.
4.  **Synthesize**: Combine findings into a detailed report.
5.  **Cite**: Always cite your sources with URLs.`

const memoryAgentInstruction = `You are a Memory Agent responsible for managing long-term memory.

**Your Capabilities:**
1.  **Retrieve Memory**: Search for past context using 'memory_tool'.
2.  **Save Memory**: Store new important information using 'save_context_tool'.

**Instructions:**
- **Recall**: When asked to recall something, use 'memory_tool'.
- **Store**: When asked to remember or save something, use 'save_context_tool'.
- **Summarize**: If you find relevant memories, summarize them clearly for the user.`

// NewOrchestrator builds the orchestrator and its sub-agents for one
// user, wiring each sub-agent's tools with the user's service tokens.
func NewOrchestrator(userID string, tokens types.TokenBundle, mem *memory.Client) *Agent {
	dataAgent := &Agent{
		Name:        "data_science_agent",
		Description: "Retrieves data from the user's connected services: Gmail, Google Chat, Google Drive, Slack and GitHub.",
		Instruction: dataAgentInstruction,
		Tools: tool.NewRegistry(
			tool.NewGmailListTool(tokens["gmail"]),
			tool.NewGmailGetTool(tokens["gmail"]),
			tool.NewChatSpacesTool(tokens["google_chat"]),
			tool.NewChatMessagesTool(tokens["google_chat"]),
			tool.NewDriveListTool(tokens["google_drive"]),
			tool.NewDriveSearchTool(tokens["google_drive"]),
			tool.NewSlackChannelsTool(tokens["slack"]),
			tool.NewSlackSearchTool(tokens["slack"]),
			tool.NewGitHubReposTool(tokens["github"]),
			tool.NewGitHubSearchTool(tokens["github"]),
		),
	}

	researchAgent := &Agent{
		Name:        "research_agent",
		Description: "Performs deep research by searching the web and scraping content.",
		Instruction: researchAgentInstruction,
		Tools: tool.NewRegistry(
			tool.NewWebSearchTool(),
			tool.NewWebScrapeTool(),
		),
	}

	memoryAgent := &Agent{
		Name:        "memory_agent",
		Description: "Stores and retrieves long-term memories.",
		Instruction: memoryAgentInstruction,
		Tools: tool.NewRegistry(
			tool.NewMemoryQueryTool(mem),
			tool.NewMemorySaveTool(mem, userID),
		),
	}

	return &Agent{
		Name:        "master_orchestrator",
		Description: "A master agent that orchestrates specialized sub-agents for data retrieval, research, and memory management.",
		Instruction: orchestratorInstruction,
		Tools:       tool.NewRegistry(),
		SubAgents:   []*Agent{dataAgent, researchAgent, memoryAgent},
	}
}
