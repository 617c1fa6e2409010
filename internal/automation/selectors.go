package automation

import "github.com/testsquadco/mailauto/internal/driver"

// locator pairs a strategy with a selector value. Candidate lists are
// tried in order; the app's UI differs across versions and account states,
// so every screen has several plausible shapes.
type locator struct {
	By    string
	Value string
}

var launchIndicators = []locator{
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'Gmail')]"},
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'Inbox')]"},
	{driver.ByID, "com.google.android.gm:id/conversation_list_view"},
	{driver.ByID, "com.google.android.gm:id/compose_button"},
	{driver.ByID, "com.google.android.gm:id/main_pane"},
	{driver.ByXPath, "//android.widget.Button[contains(@text, 'Sign in')]"},
	{driver.ByXPath, "//android.widget.Button[contains(@text, 'Add account')]"},
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'Add an email address')]"},
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'Welcome')]"},
	{driver.ByXPath, "//android.widget.Button[contains(@text, 'Take me to Gmail')]"},
}

var launchKeywords = []string{"gmail", "google mail", "inbox", "compose"}

var signInButtons = []locator{
	{driver.ByXPath, "//android.widget.Button[contains(@text, 'Sign in')]"},
	{driver.ByXPath, "//android.widget.Button[contains(@text, 'Add account')]"},
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'Sign in')]"},
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'Add account')]"},
	{driver.ByID, "com.google.android.gm:id/welcome_tour_skip"},
	{driver.ByID, "com.google.android.gm:id/action_done"},
}

var emailFields = []locator{
	{driver.ByXPath, "//android.widget.EditText[contains(@hint, 'Email')]"},
	{driver.ByXPath, "//android.widget.EditText[contains(@hint, 'email')]"},
	{driver.ByXPath, "//android.widget.EditText[contains(@text, 'Email')]"},
	{driver.ByXPath, "//android.widget.EditText[@resource-id='identifierId']"},
	{driver.ByID, "identifierId"},
	{driver.ByXPath, "//input[@type='email']"},
	{driver.ByXPath, "//android.widget.EditText[1]"},
}

var emailNextButtons = []locator{
	{driver.ByXPath, "//android.widget.Button[contains(@text, 'Next')]"},
	{driver.ByXPath, "//android.widget.Button[@resource-id='identifierNext']"},
	{driver.ByID, "identifierNext"},
	{driver.ByXPath, "//span[text()='Next']"},
}

var passwordFields = []locator{
	{driver.ByXPath, "//android.widget.EditText[contains(@hint, 'Password')]"},
	{driver.ByXPath, "//android.widget.EditText[contains(@hint, 'password')]"},
	{driver.ByXPath, "//android.widget.EditText[@resource-id='password']"},
	{driver.ByID, "password"},
	{driver.ByXPath, "//input[@type='password']"},
	{driver.ByXPath, "//android.widget.EditText[contains(@content-desc, 'password')]"},
	{driver.ByXPath, "//android.widget.EditText[2]"},
}

var passwordNextButtons = []locator{
	{driver.ByXPath, "//android.widget.Button[contains(@text, 'Next')]"},
	{driver.ByXPath, "//android.widget.Button[@resource-id='passwordNext']"},
	{driver.ByID, "passwordNext"},
	{driver.ByXPath, "//span[text()='Next']"},
	{driver.ByXPath, "//android.widget.Button[contains(@text, 'Sign in')]"},
}

var successIndicators = []locator{
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'Inbox')]"},
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'Primary')]"},
	{driver.ByID, "com.google.android.gm:id/conversation_list_view"},
	{driver.ByID, "com.google.android.gm:id/compose_button"},
}

var blockedIndicators = []locator{
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'Wrong password')]"},
	{driver.ByXPath, "//android.widget.TextView[contains(@text, \"Couldn't sign you in\")]"},
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'This browser or app may not be secure')]"},
	{driver.ByXPath, "//android.widget.TextView[contains(@text, 'blocked')]"},
}
