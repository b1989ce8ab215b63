package pipeline

import "github.com/starford/marginalia/internal/models"

// SampleSource and SampleText are a small known-good input for trying the
// tool without an export at hand.
var SampleSource = models.SourceMetadata{
	Title:     "Stand Out of Our Light: Freedom and Resistance in the Attention Economy",
	Authors:   []string{"James Williams"},
	Year:      "2018",
	Publisher: "Cambridge University Press",
	Tags:      []string{"attention", "technology", "ethics"},
	Format:    models.FormatBook,
}

const SampleText = `Page xii | Highlight
liberation of human attention may be the defining moral and political struggle of our time. Its
success is prerequisite for the success of virtually all other struggles.

Page 45 | Highlight
What do you pay when you pay attention? You pay with all the things you could have attended to, but didn't: all the goals you didn't pursue, all the actions you didn't take, and all the possible yous you could have been, had you attended to those other things. Attention is paid in possible futures forgone.

Page 88 | Highlight
people were computers, however, the appropriate description would be that of the distributed denial-of-service, or
13
Page 88 | Highlight Continued
DDoS, attack. In a DDoS attack, the attacker controls many computers and uses them to send more requests to the target than it can handle.
`
