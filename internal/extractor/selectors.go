package extractor

// Selector lists, most specific first. The surrounding webmail markup is
// unversioned, so each field carries several candidates.
var (
	subjectSelectors = []string{
		"h2[data-thread-perm-id]",
		".hP",
		".thread-subject",
		"[data-thread-id] h2",
		".mail-subject",
	}

	senderSelectors = []string{
		".gD .g2 span[email]",
		".gD .g2 .email",
		".gD .g2",
		".gD span[email]",
		".gD .email",
		".gD",
	}

	dateSelectors = []string{
		".gH .gK .g3",
		".gH .gK .g4",
		".h5 .gK .g3",
		".h5 .gK .g4",
		".gH .gK",
		".h5 .gK",
		".g2 .gK",
		".yW .gK",
	}

	bodySelectors = []string{
		".a3s",
		".email-body",
		".message-body",
		".mail-message",
	}

	attachmentContainerSelector = ".aZo, .attachment, .file-attachment, [data-attachment-id]"

	attachmentNameSelectors = []string{
		".aZo-name",
		".aV3",
		".attachment-name",
		"[data-attachment-name]",
		".filename",
		"span[title]",
	}

	attachmentSizeSelectors = []string{
		".aZo-size",
		".attachment-size",
		"[data-attachment-size]",
	}
)

// Thread view selectors
const (
	threadMessageSelector    = ".adn"
	threadSenderSelector     = ".gD"
	threadDateSelector       = ".gH .gK .g3"
	threadBodySelector       = ".a3s"
	threadBodyLTRSelector    = ".a3s div[dir=\"ltr\"]"
	threadAttachmentSelector = ".aZo"
	threadAttachmentName     = ".aV3"
	downloadURLAttr          = "download_url"
)
