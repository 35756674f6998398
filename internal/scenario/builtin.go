// -- internal/scenario/builtin.go --
// The built-in Obsidian mobile test suite.

package scenario

// ObsidianPackage is the Android package name of the app under test.
const ObsidianPackage = "md.obsidian"

// Builtin returns the registry of bundled Obsidian scenarios. The suite mixes
// scenarios expected to pass with scenarios expected to fail, so a run
// exercises both the completion path and the failure-reporting path of the
// agent. Registration order matters: later scenarios (search, note content)
// rely on the vault and note created by the first two.
func Builtin() *Registry {
	r, err := NewRegistry(builtinScenarios)
	if err != nil {
		// The builtin table is compiled in; a bad entry is a programming error.
		panic(err)
	}
	return r
}

var builtinScenarios = []Scenario{
	{
		Name:       "create_vault",
		Goal:       "Create vault: 1) Tap purple 'Create a vault' 2) Tap purple 'Continue without sync' 3) Clear vault name field, type 'InternVault' 4) Tap purple 'Create a vault' 5) Tap blue 'USE THIS FOLDER' 6) Tap 'ALLOW'. Then verify main vault interface.",
		Assertion:  "Vault 'InternVault' created and main Obsidian interface visible (New tab or notes list).",
		ShouldPass: true,
		Demo:       true,
		Steps: []string{
			"Tap purple 'Create a vault' button",
			"Tap purple 'Continue without sync' button",
			"Tap vault name field and clear it",
			"Type 'InternVault'",
			"Tap purple 'Create a vault' button",
			"Tap blue 'USE THIS FOLDER' button",
			"Tap 'ALLOW' button",
			"Report completion when vault interface visible",
		},
	},
	{
		Name:       "create_note",
		Goal:       "Create a new note titled 'Meeting Notes' with body text 'Daily Standup'. Steps: 1) Tap 'Create new note' or the + icon 2) Type 'Meeting Notes' as the title (first line) 3) Press Enter 4) Type 'Daily Standup' as the body content. Report completion when done.",
		Assertion:  "A note titled 'Meeting Notes' with body 'Daily Standup' exists and its text is visible on screen.",
		ShouldPass: true,
		Demo:       true,
		Steps: []string{
			"Tap the 'Create new note' button or + icon in the vault interface",
			"Type 'Meeting Notes' as the note title (first line)",
			"Press Enter to move to the body",
			"Type 'Daily Standup' as the body content",
			"Report completion when text has been entered",
		},
	},
	{
		Name:       "appearance_accent_red",
		Goal:       "Verify the Appearance accent color is RED. Steps: 1) Tap the top-left icon to go back to the file browser 2) Tap the settings gear icon in the top-right 3) Tap 'Appearance' 4) Check the 'Accent color' setting.",
		Assertion:  "The Appearance accent color is red.",
		ShouldPass: false,
		Demo:       true,
		Steps: []string{
			"Tap top-left icon to go back to the file browser",
			"Tap the settings gear icon in the top-right",
			"Tap 'Appearance' in the Settings menu",
			"Look at 'Accent color': it is purple, not red",
			"Report failure because the accent color is not red",
		},
	},
	{
		Name:       "print_to_pdf",
		Goal:       "Find and tap the 'Print to PDF' button in the main file menu. Steps: 1) Tap the hamburger menu (3 horizontal lines) at the bottom right 2) Look through the menu options for 'Print to PDF'.",
		Assertion:  "A 'Print to PDF' option exists in the file menu.",
		ShouldPass: false,
		Demo:       true,
		Steps: []string{
			"Tap the hamburger menu icon (3 horizontal lines) at the bottom right",
			"Look through all menu options for 'Print to PDF'",
			"The option does not exist in the mobile version",
			"Report failure because 'Print to PDF' was not found",
		},
	},
	{
		Name:       "search_notes",
		Goal:       "Use the search feature to search for 'Meeting' and verify search results appear.",
		Assertion:  "Search results display at least one note containing 'Meeting' in its title or content.",
		ShouldPass: true,
		Steps: []string{
			"Ensure at least one note with 'Meeting' in it exists",
			"Find and tap the search icon",
			"Type 'Meeting' in the search field",
			"Verify that search results are displayed",
		},
	},
	{
		Name:       "toggle_dark_mode",
		Goal:       "Go to Settings > Appearance and toggle the dark/light mode theme.",
		Assertion:  "The app theme visibly changed between dark and light mode.",
		ShouldPass: true,
		Steps: []string{
			"Open Settings",
			"Navigate to Appearance settings",
			"Find the theme or dark mode toggle",
			"Toggle the theme setting",
			"Verify the visual change in the app",
		},
	},
	{
		Name:       "enable_calendar_plugin",
		Goal:       "Enable the 'Calendar View' core plugin from the settings.",
		Assertion:  "A 'Calendar View' entry exists under Core plugins and is enabled.",
		ShouldPass: false,
		Steps: []string{
			"Open Settings",
			"Navigate to the Core plugins section",
			"Look for a 'Calendar View' plugin",
			"Report failure when the plugin is not found",
		},
	},
}
