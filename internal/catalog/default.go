package catalog

// Default returns the clinic's published departments and doctors.
func Default() *Catalog {
	return New(defaultDepartments, defaultDoctors)
}

var defaultDepartments = []Department{
	{Name: "Physical Therapy", Description: "Restore movement and function after injury, surgery or illness.", Icon: "activity"},
	{Name: "Occupational Therapy", Description: "Regain the skills needed for daily living and work.", Icon: "hand"},
	{Name: "Speech Therapy", Description: "Treatment for speech, language and swallowing disorders.", Icon: "message-circle"},
	{Name: "Sports Rehabilitation", Description: "Return to sport with injury-specific strength and conditioning.", Icon: "dumbbell"},
	{Name: "Neurological Rehabilitation", Description: "Recovery programs after stroke, brain or spinal cord injury.", Icon: "brain"},
	{Name: "Cardiac Rehabilitation", Description: "Supervised exercise and education after heart events.", Icon: "heart"},
}

var defaultDoctors = []Doctor{
	{Name: "Dr. Sarah Wilson", Department: "Physical Therapy", Specialization: "Orthopedic Rehabilitation", Rating: 4.9},
	{Name: "Dr. James Miller", Department: "Physical Therapy", Specialization: "Post-surgical Recovery", Rating: 4.7},
	{Name: "Dr. Michael Chen", Department: "Occupational Therapy", Specialization: "Hand Therapy", Rating: 4.8},
	{Name: "Dr. Emily Rodriguez", Department: "Speech Therapy", Specialization: "Swallowing Disorders", Rating: 4.9},
	{Name: "Dr. David Thompson", Department: "Sports Rehabilitation", Specialization: "ACL and Knee Injuries", Rating: 4.8},
	{Name: "Dr. Lisa Anderson", Department: "Neurological Rehabilitation", Specialization: "Stroke Recovery", Rating: 4.9},
	{Name: "Dr. Robert Garcia", Department: "Cardiac Rehabilitation", Specialization: "Post-MI Exercise Programs", Rating: 4.6},
}
