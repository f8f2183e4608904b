package conversation

// Menu labels. Incoming text is compared against them, so they double as
// commands.
const (
	LabelEarnMoney   = "How to earn online"
	LabelInvitations = "Invited friends"
	LabelOrder       = "Order"

	LabelInvitationLink        = "Invitation link"
	LabelInvitedList           = "List of invited"
	LabelBalance               = "Balance"
	LabelInvitationDescription = "Invitation system description"

	LabelLeaveRequest = "Leave a request"
)

const (
	textStartMenu       = "What would you like to do?"
	textProviders       = "Which earning method would you like to know more about?"
	textUnknownProvider = "Sorry, didn't find such earning method. Please repeat"
	textInvitationsMenu = "Choose one of the menu items"
	textUnknownCommand  = "Didn't understand the command"
	textConfirmOrder    = "Confirm that you want to leave a request"
	textRetryPrefix     = "Didn't understand. "
	textThanks          = "Thanks"
	textNoToken         = "You haven't requested an invitation link yet"
	textRepeat          = "Please repeat"
	textBalance         = "Your balance: %d"

	textInvitedLevel1 = "Invited by you: "
	textInvitedLevel2 = "Invited by your invitees: "
	textInvitedLevel3 = "Invited by the invitees of your invitees: "

	textEnterName  = "Enter your name"
	textEnterPhone = "Enter your phone"
	textEnterTM    = "Enter your @TM"
	textEnterEmail = "Enter your email"

	invitationURL  = "https://t.me/%s?start=%s"
	invitationLink = `<a href="%s">Invitation link</a>`
)

var (
	startMenu       = [][]string{{LabelEarnMoney}, {LabelInvitations}, {LabelOrder}}
	invitationsMenu = [][]string{{LabelInvitationLink, LabelInvitedList, LabelBalance}, {LabelInvitationDescription}}
	orderMenu       = [][]string{{LabelLeaveRequest}}
)

// providerRowWidth is the number of provider buttons per keyboard row.
const providerRowWidth = 3
