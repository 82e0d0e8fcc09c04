package analysis

// ReportInstruction accompanies every uploaded report image.
const ReportInstruction = `You are an expert in analyzing medical reports (especially for cancer and major diseases). 
        Review the following uploaded report and generate a clear, paragraph-formatted, easy-to-understand treatment plan tailored for the patient. Avoid jargon and make it readable.`

// BoardExample is the board embedded in the board prompt. Models asked with
// an uninformative narrative tend to echo it back verbatim.
const BoardExample = `{
  "columns": [
    { "id": "todo", "title": "Todo" },
    { "id": "doing", "title": "Work in progress" },
    { "id": "done", "title": "Done" }
  ],
  "tasks": [
    { "id": "1", "columnId": "todo", "content": "Initial consultation with oncologist" },
    { "id": "2", "columnId": "doing", "content": "Radiation therapy session" },
    { "id": "3", "columnId": "done", "content": "Blood test completed" }
  ]
}`

// promptBullet is the list marker of the board prompt: a bullet with word
// joiners around the padding.
const promptBullet = "\u2022\u2060  \u2060 "

const boardPromptHead = "\nUse the following treatment plan to generate a structured kanban task board. Divide it into:\n" +
	promptBullet + "Todo: Tasks not started\n" +
	promptBullet + "Doing: Tasks in progress\n" +
	promptBullet + "Done: Completed tasks\n" +
	"\nEach task should be a brief actionable step. Output should be JSON in the structure below (no markdown or extra explanation):\n\n"

// BoardPrompt embeds narrative into the fixed board template.
func BoardPrompt(narrative string) string {
	return boardPromptHead + BoardExample + "\n\nTreatment plan: " + narrative + "\n"
}
