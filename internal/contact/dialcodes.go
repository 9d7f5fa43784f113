package contact

// DialCode is one entry of the phone prefix select on the contact page.
type DialCode struct {
	Code string // ISO 3166 alpha-2
	Name string
	Dial string
}

// DialCodes is the prefix list offered by the form, default first.
var DialCodes = []DialCode{
	{"US", "United States", "+1"},
	{"GB", "United Kingdom", "+44"},
	{"RO", "Romania", "+40"},
	{"DE", "Germany", "+49"},
	{"FR", "France", "+33"},
	{"ES", "Spain", "+34"},
	{"IT", "Italy", "+39"},
	{"CA", "Canada", "+1"},
	{"AU", "Australia", "+61"},
}
