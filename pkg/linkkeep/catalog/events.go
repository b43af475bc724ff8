package catalog

// Change bus event names. Published after the owning transaction commits.
const (
	EventCategoryCreated = "category.created"
	EventCategoryUpdated = "category.updated"
	EventCategoryDeleted = "category.deleted"
	EventLinkCreated     = "link.created"
	EventLinkUpdated     = "link.updated"
	EventLinkDeleted     = "link.deleted"
)
